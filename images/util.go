package images

import (
	"crypto/md5"
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum for a Mat to verify idempotency.
//
// Arguments:
// - mat: The Mat to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	before := ComputeMatChecksum(frame)
//	plates, _ := finder.FindPossiblePlates(frame)
//	fmt.Println(before == ComputeMatChecksum(frame)) // true, the frame is never written.
//
// ```
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, _ := mat.DataPtrUint8()
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// ResizeToWidth resizes src to the given width preserving the aspect ratio.
//
// Arguments:
//   - src: The Mat to resize.
//   - width: The target width in pixels.
//   - interp: The interpolation used by OpenCV.
//
// Returns:
//   - gocv.Mat: A new Mat owned by the caller.
//   - error: An error if src is empty or the resize fails.
func ResizeToWidth(src gocv.Mat, width int, interp gocv.InterpolationFlags) (gocv.Mat, error) {
	if src.Empty() || src.Cols() == 0 {
		return gocv.NewMat(), errors.New("cannot resize an empty mat")
	}

	height := int(float64(src.Rows())*float64(width)/float64(src.Cols()) + 0.5)
	if height < 1 {
		height = 1
	}

	dst := gocv.NewMat()
	if err := gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, interp); err != nil {
		dst.Close()
		return gocv.NewMat(), errors.Wrap(err, "resize")
	}
	return dst, nil
}

// Crop returns a deep copy of the region r of src, clamped to the bounds of src.
func Crop(src gocv.Mat, r image.Rectangle) gocv.Mat {
	r = r.Intersect(Bounds(src.Cols(), src.Rows()))
	if r.Empty() {
		return gocv.NewMat()
	}
	region := src.Region(r)
	defer region.Close()
	return region.Clone()
}
