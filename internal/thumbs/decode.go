package thumbs

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decode reads an image and applies its EXIF orientation.
func decode(r io.ReadSeeker, ext string) (image.Image, error) {
	if ext == ".heic" || ext == ".heif" {
		if !heicSupported() {
			return nil, ErrUnsupported
		}
		return decodeHEIC(r)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	if ext != ".jpg" && ext != ".jpeg" && ext != ".tif" && ext != ".tiff" {
		return img, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return img, nil
	}
	return applyOrientation(img, orientation(r)), nil
}

// orientation returns the EXIF orientation tag, 1 when absent.
func orientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
		return v
	}
	return 1
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
