package autoaim

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage/transform"
	genericservice "go.viam.com/rdk/services/generic"

	"autoaim/aiming"
	"autoaim/ballistics"
	"autoaim/solvers"
	"autoaim/trackers"
	"autoaim/transforms"
	"autoaim/utils"
)

var AimerModel = resource.NewModel("irm", "auto-aim", "aimer")

func init() {
	resource.RegisterService(genericservice.API, AimerModel,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newAimerService,
		},
	)
}

const defaultMuzzleSpeedMPS = 15.0

type Config struct {
	EnemyTeam string `json:"enemy_team"`

	// Camera intrinsics, assumed pre-rectified (no runtime distortion
	// correction).
	ImageWidth  int     `json:"image_width"`
	ImageHeight int     `json:"image_height"`
	Fx          float64 `json:"fx"`
	Fy          float64 `json:"fy"`
	Ppx         float64 `json:"ppx"`
	Ppy         float64 `json:"ppy"`

	// Camera mounting relative to the gimbal barrel.
	CameraOffsetM [3]float64 `json:"camera_offset_m"`
	CameraRPYRad  [3]float64 `json:"camera_rpy_rad"`

	MuzzleSpeedMPS   float64 `json:"muzzle_speed_mps"`
	MaxReprojErrorPx float64 `json:"max_reproj_error_px"`
	RefinePose       bool    `json:"refine_pose"`
	DropFailedPoses  bool    `json:"drop_failed_poses"`
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit required (first return) and optional (second return) dependencies based on the config.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if !utils.Team(cfg.EnemyTeam).Valid() {
		return nil, nil, fmt.Errorf("enemy_team must be %q or %q, got %q", utils.TeamRed, utils.TeamBlue, cfg.EnemyTeam)
	}
	if cfg.ImageWidth <= 0 || cfg.ImageHeight <= 0 {
		return nil, nil, errors.New("image_width and image_height are required")
	}
	if cfg.Fx <= 0 || cfg.Fy <= 0 {
		return nil, nil, errors.New("fx and fy must be greater than 0")
	}
	// Set defaults for optional parameters
	if cfg.MuzzleSpeedMPS == 0 {
		cfg.MuzzleSpeedMPS = defaultMuzzleSpeedMPS
	}
	if cfg.MuzzleSpeedMPS < 0 {
		return nil, nil, errors.New("muzzle_speed_mps must be greater than 0")
	}
	if cfg.MaxReprojErrorPx < 0 {
		return nil, nil, errors.New("max_reproj_error_px must be non-negative")
	}
	return nil, nil, nil
}

type aimerService struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config

	// The aimer owns the tracker's cross-frame state; frames must be
	// processed sequentially.
	mu    sync.Mutex
	aimer *aiming.Aimer
	enemy utils.Team
}

func newAimerService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewAimerService(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewAimerService(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	intrinsics := &transform.PinholeCameraIntrinsics{
		Width:  conf.ImageWidth,
		Height: conf.ImageHeight,
		Fx:     conf.Fx,
		Fy:     conf.Fy,
		Ppx:    conf.Ppx,
		Ppy:    conf.Ppy,
	}
	solver, err := solvers.NewIPPESolver(solvers.Config{
		Intrinsics:       intrinsics,
		MaxReprojErrorPx: conf.MaxReprojErrorPx,
		Refine:           conf.RefinePose,
	}, logger)
	if err != nil {
		return nil, err
	}

	frames := transforms.NewGimbalFrames(transforms.Config{
		CameraOffset: r3.Vector{X: conf.CameraOffsetM[0], Y: conf.CameraOffsetM[1], Z: conf.CameraOffsetM[2]},
		CameraRoll:   conf.CameraRPYRad[0],
		CameraPitch:  conf.CameraRPYRad[1],
		CameraYaw:    conf.CameraRPYRad[2],
	})

	corrector, err := ballistics.NewFlatTrajectoryModel(conf.MuzzleSpeedMPS)
	if err != nil {
		return nil, err
	}

	// The association tracker runs as its own component; until it is wired
	// in, the stateless nearest selector keeps the pipeline usable.
	tracker := trackers.NewNearestSelector(logger)

	aimer, err := aiming.New(aiming.Config{DropFailedPoses: conf.DropFailedPoses},
		solver, frames, tracker, corrector, logger)
	if err != nil {
		return nil, err
	}

	return &aimerService{
		name:   name,
		logger: logger,
		cfg:    conf,
		aimer:  aimer,
		enemy:  utils.Team(conf.EnemyTeam),
	}, nil
}

func (s *aimerService) Name() resource.Name {
	return s.name
}

func (s *aimerService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "process-frame":
		gimbal, err := parseGimbal(cmd["gimbal"])
		if err != nil {
			return nil, err
		}
		detections, err := parseDetections(cmd["detections"])
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		result, err := s.aimer.ProcessOne(detections, s.enemy, gimbal)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if result == nil {
			return map[string]interface{}{"has_target": false}, nil
		}
		return map[string]interface{}{
			"has_target":         true,
			"abs_yaw":            result.AbsYaw,
			"abs_pitch":          result.AbsPitch,
			"uncalibrated_yaw":   result.UncalibratedYaw,
			"uncalibrated_pitch": result.UncalibratedPitch,
			"target_dist":        result.TargetDist,
		}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (s *aimerService) Close(context.Context) error {
	return nil
}

func parseGimbal(raw interface{}) (utils.GimbalState, error) {
	gimbalMap, ok := raw.(map[string]interface{})
	if !ok {
		return utils.GimbalState{}, errors.New("gimbal field is required and must be a map")
	}
	yaw, ok := gimbalMap["yaw"].(float64)
	if !ok {
		return utils.GimbalState{}, errors.New("gimbal.yaw is not a float64")
	}
	pitch, ok := gimbalMap["pitch"].(float64)
	if !ok {
		return utils.GimbalState{}, errors.New("gimbal.pitch is not a float64")
	}
	return utils.GimbalState{Yaw: yaw, Pitch: pitch}, nil
}

func parseDetections(raw interface{}) ([]utils.ArmorDetection, error) {
	if raw == nil {
		return nil, nil
	}
	rawList, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("detections must be an array")
	}

	detections := make([]utils.ArmorDetection, 0, len(rawList))
	for i, rawDet := range rawList {
		detMap, ok := rawDet.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("detection %d is not a map", i)
		}

		det := utils.ArmorDetection{}
		if class, ok := detMap["class"].(string); ok {
			det.Class = class
		}

		if rawBox, ok := detMap["bbox"].([]interface{}); ok {
			if len(rawBox) != 4 {
				return nil, fmt.Errorf("detection %d bbox must have 4 values", i)
			}
			coords := make([]float64, 4)
			for j, v := range rawBox {
				f, ok := v.(float64)
				if !ok {
					return nil, fmt.Errorf("detection %d bbox[%d] is not a float64", i, j)
				}
				coords[j] = f
			}
			det.BBox = image.Rect(int(coords[0]), int(coords[1]), int(coords[2]), int(coords[3]))
		}

		rawKps, ok := detMap["keypoints"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("detection %d missing keypoints", i)
		}
		if len(rawKps) != 4 {
			return nil, fmt.Errorf("detection %d must have exactly 4 keypoints, got %d", i, len(rawKps))
		}
		var kps [4]r2.Point
		for j, rawKp := range rawKps {
			kpList, ok := rawKp.([]interface{})
			if !ok || len(kpList) != 2 {
				return nil, fmt.Errorf("detection %d keypoint %d must be a [u, v] pair", i, j)
			}
			u, uOK := kpList[0].(float64)
			v, vOK := kpList[1].(float64)
			if !uOK || !vOK {
				return nil, fmt.Errorf("detection %d keypoint %d coordinates are not float64", i, j)
			}
			kps[j] = r2.Point{X: u, Y: v}
		}
		// Canonical order: left-top, left-bottom, right-top, right-bottom.
		det.LeftLight = utils.LightBar{Top: kps[0], Bottom: kps[1]}
		det.RightLight = utils.LightBar{Top: kps[2], Bottom: kps[3]}

		detections = append(detections, det)
	}
	return detections, nil
}
