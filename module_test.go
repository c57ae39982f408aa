package autoaim

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		EnemyTeam:   "red",
		ImageWidth:  1280,
		ImageHeight: 720,
		Fx:          1000,
		Fy:          1000,
		Ppx:         640,
		Ppy:         360,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	if _, _, err := cfg.Validate(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MuzzleSpeedMPS != defaultMuzzleSpeedMPS {
		t.Errorf("muzzle speed default: got %v, want %v", cfg.MuzzleSpeedMPS, defaultMuzzleSpeedMPS)
	}
}

func TestConfigValidateRejectsBadTeam(t *testing.T) {
	for _, team := range []string{"", "green", "RED"} {
		cfg := validConfig()
		cfg.EnemyTeam = team
		if _, _, err := cfg.Validate(""); err == nil {
			t.Errorf("expected error for enemy_team %q", team)
		}
	}
}

func TestConfigValidateRejectsBadIntrinsics(t *testing.T) {
	cfg := validConfig()
	cfg.Fx = 0
	if _, _, err := cfg.Validate(""); err == nil {
		t.Error("expected error for zero fx")
	}

	cfg = validConfig()
	cfg.ImageWidth = 0
	if _, _, err := cfg.Validate(""); err == nil {
		t.Error("expected error for zero image width")
	}
}

func TestParseGimbal(t *testing.T) {
	gimbal, err := parseGimbal(map[string]interface{}{"yaw": 0.1, "pitch": -0.05})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gimbal.Yaw != 0.1 || gimbal.Pitch != -0.05 {
		t.Errorf("got %+v", gimbal)
	}

	if _, err := parseGimbal(nil); err == nil {
		t.Error("expected error for missing gimbal")
	}
	if _, err := parseGimbal(map[string]interface{}{"yaw": 0.1}); err == nil {
		t.Error("expected error for missing pitch")
	}
}

func TestParseDetections(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"class": "standard",
			"bbox":  []interface{}{10.0, 20.0, 110.0, 80.0},
			"keypoints": []interface{}{
				[]interface{}{100.0, 200.0},
				[]interface{}{100.0, 260.0},
				[]interface{}{220.0, 200.0},
				[]interface{}{220.0, 260.0},
			},
		},
	}
	detections, err := parseDetections(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(detections))
	}
	det := detections[0]
	if det.Class != "standard" {
		t.Errorf("class: got %q", det.Class)
	}
	if det.LeftLight.Top.X != 100 || det.RightLight.Bottom.Y != 260 {
		t.Errorf("keypoint order mangled: %+v", det)
	}
	if det.BBox.Min.X != 10 || det.BBox.Max.Y != 80 {
		t.Errorf("bbox: got %v", det.BBox)
	}
}

func TestParseDetectionsRejectsWrongKeypointCount(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"keypoints": []interface{}{
				[]interface{}{100.0, 200.0},
				[]interface{}{100.0, 260.0},
			},
		},
	}
	if _, err := parseDetections(raw); err == nil {
		t.Fatal("expected error for wrong keypoint count")
	}
}
