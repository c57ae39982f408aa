package solvers

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/rimage/transform"
	"gonum.org/v1/gonum/mat"
)

// Ratio of smallest to largest singular value below which the DLT system is
// treated as rank deficient (collinear or coincident keypoints).
const degeneracyRatio = 1e-9

var identity3 = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func matMul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

// normalizePoints centers the points on their centroid and scales the mean
// distance to sqrt(2) (Hartley normalization), returning the normalized
// points, the similarity transform, and its inverse.
func normalizePoints(pts [4]r2.Point) (normalized [4]r2.Point, t, tInv [3][3]float64, ok bool) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= 4
	if meanDist < 1e-12 {
		return pts, identity3, identity3, false
	}
	s := math.Sqrt2 / meanDist

	for i, p := range pts {
		normalized[i] = r2.Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	t = [3][3]float64{{s, 0, -s * cx}, {0, s, -s * cy}, {0, 0, 1}}
	tInv = [3][3]float64{{1 / s, 0, cx}, {0, 1 / s, cy}, {0, 0, 1}}
	return normalized, t, tInv, true
}

// estimateHomography solves the planar projective mapping object -> image
// from four correspondences via the normalized DLT. Returns ok=false for
// degenerate configurations.
func estimateHomography(obj, img [4]r2.Point) ([3][3]float64, bool) {
	objN, tObj, _, okObj := normalizePoints(obj)
	imgN, _, tImgInv, okImg := normalizePoints(img)
	if !okObj || !okImg {
		return identity3, false
	}

	a := mat.NewDense(8, 9, nil)
	for i := 0; i < 4; i++ {
		x, y := objN[i].X, objN[i].Y
		u, v := imgN[i].X, imgN[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y, -v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return identity3, false
	}
	sv := svd.Values(nil)
	if sv[0] <= 0 || sv[7] < degeneracyRatio*sv[0] {
		// Rank-deficient system: the homography is not uniquely determined.
		return identity3, false
	}

	var v mat.Dense
	svd.VTo(&v)

	// The null vector of A is the last column of V.
	var hNorm [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hNorm[i][j] = v.At(3*i+j, 8)
		}
	}

	h := matMul3(tImgInv, matMul3(hNorm, tObj))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(h[i][j]) || math.IsInf(h[i][j], 0) {
				return identity3, false
			}
		}
	}
	return h, true
}

// poseFromHomography decomposes H = K [r1 r2 t] into a rotation and a
// translation with the target in front of the camera (t.Z > 0).
func poseFromHomography(h [3][3]float64, intr *transform.PinholeCameraIntrinsics) ([3][3]float64, r3.Vector, bool) {
	kInv := [3][3]float64{
		{1 / intr.Fx, 0, -intr.Ppx / intr.Fx},
		{0, 1 / intr.Fy, -intr.Ppy / intr.Fy},
		{0, 0, 1},
	}
	m := matMul3(kInv, h)

	n1 := math.Sqrt(m[0][0]*m[0][0] + m[1][0]*m[1][0] + m[2][0]*m[2][0])
	n2 := math.Sqrt(m[0][1]*m[0][1] + m[1][1]*m[1][1] + m[2][1]*m[2][1])
	if n1 < 1e-12 || n2 < 1e-12 {
		return identity3, r3.Vector{}, false
	}
	lambda := 2 / (n1 + n2)

	// The homography is scale-free; pick the sign that puts the plate in
	// front of the camera.
	if m[2][2] < 0 {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m[i][j] = -m[i][j]
			}
		}
	}

	t := r3.Vector{X: lambda * m[0][2], Y: lambda * m[1][2], Z: lambda * m[2][2]}
	if t.Z < 1e-6 {
		return identity3, r3.Vector{}, false
	}

	r1 := r3.Vector{X: lambda * m[0][0], Y: lambda * m[1][0], Z: lambda * m[2][0]}
	r2c := r3.Vector{X: lambda * m[0][1], Y: lambda * m[1][1], Z: lambda * m[2][1]}
	r3c := r1.Cross(r2c)

	approx := [3][3]float64{
		{r1.X, r2c.X, r3c.X},
		{r1.Y, r2c.Y, r3c.Y},
		{r1.Z, r2c.Z, r3c.Z},
	}
	r, ok := nearestRotation(approx)
	if !ok {
		return identity3, r3.Vector{}, false
	}
	return r, t, true
}

// nearestRotation projects a near-orthonormal matrix onto SO(3) via SVD.
func nearestRotation(m [3][3]float64) ([3][3]float64, bool) {
	data := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return identity3, false
			}
			data = append(data, m[i][j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(3, 3, data), mat.SVDFull) {
		return identity3, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var uvt mat.Dense
	uvt.Mul(&u, v.T())
	s := 1.0
	if mat.Det(&uvt) < 0 {
		s = -1.0
	}

	var tmp, rm mat.Dense
	tmp.Mul(&u, mat.NewDiagDense(3, []float64{1, 1, s}))
	rm.Mul(&tmp, v.T())

	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = rm.At(i, j)
		}
	}
	return out, true
}

// rodriguesFromMatrix converts a rotation matrix to an axis-angle vector.
// ok=false near the pi-rotation singularity where the axis is ambiguous.
func rodriguesFromMatrix(r [3][3]float64) (r3.Vector, bool) {
	tr := r[0][0] + r[1][1] + r[2][2]
	c := math.Max(-1, math.Min(1, (tr-1)/2))
	angle := math.Acos(c)
	if angle < 1e-10 {
		return r3.Vector{}, true
	}
	axis := r3.Vector{
		X: r[2][1] - r[1][2],
		Y: r[0][2] - r[2][0],
		Z: r[1][0] - r[0][1],
	}
	n := axis.Norm()
	if n < 1e-10 {
		return r3.Vector{}, false
	}
	return axis.Mul(angle / n), true
}

// matrixFromRodrigues converts an axis-angle vector to a rotation matrix.
func matrixFromRodrigues(v r3.Vector) [3][3]float64 {
	angle := v.Norm()
	if angle < 1e-12 {
		return identity3
	}
	k := v.Mul(1 / angle)
	c, s := math.Cos(angle), math.Sin(angle)
	oneC := 1 - c
	return [3][3]float64{
		{c + k.X*k.X*oneC, k.X*k.Y*oneC - k.Z*s, k.X*k.Z*oneC + k.Y*s},
		{k.Y*k.X*oneC + k.Z*s, c + k.Y*k.Y*oneC, k.Y*k.Z*oneC - k.X*s},
		{k.Z*k.X*oneC - k.Y*s, k.Z*k.Y*oneC + k.X*s, c + k.Z*k.Z*oneC},
	}
}

// rotatePoint applies R*p + t.
func rotatePoint(r [3][3]float64, p, t r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*p.X + r[0][1]*p.Y + r[0][2]*p.Z + t.X,
		Y: r[1][0]*p.X + r[1][1]*p.Y + r[1][2]*p.Z + t.Y,
		Z: r[2][0]*p.X + r[2][1]*p.Y + r[2][2]*p.Z + t.Z,
	}
}
