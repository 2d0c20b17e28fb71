package util

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

// ErrNoFrameNumber is returned for an image file whose name has no trailing
// frame number.
var ErrNoFrameNumber = errors.New("util: file name has no frame number")

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
}

// Decode decodes the file's bytes as a PNG, JPEG or BMP image.
func (f ImageFile) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "util: decode %s", f.Path)
	}
	return img, nil
}

// frameNumber returns the trailing decimal digits of a file stem, so
// "frame-12.png", "img_0012.jpg" and "12.bmp" all map to 12.
func frameNumber(name string) (int, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	if i == len(stem) {
		return 0, errors.Wrap(ErrNoFrameNumber, name)
	}
	return strconv.Atoi(stem[i:])
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files named with a trailing frame number.
//
// Returns:
// - []ImageFile: Slice of ImageFile ordered by frame number.
// - error: Error if loading fails or a file name has no frame number.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(file.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			imgPath := filepath.Join(dir, file.Name())
			data, readErr := os.ReadFile(imgPath)
			if readErr != nil {
				return nil, readErr
			}
			frame, err := frameNumber(file.Name())
			if err != nil {
				return nil, err
			}
			images = append(images, ImageFile{
				Path:  imgPath,
				Data:  data,
				Frame: frame,
			})
		}
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Frame < images[j].Frame
	})

	return images, nil
}

// LoadDirectoryImages reads and decodes the frames of an image directory in
// frame number order.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []image.Image: Decoded frames.
// - error: Error if loading or decoding fails, or the images differ in size.
func LoadDirectoryImages(dir string) ([]image.Image, error) {
	files, err := LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}

	out := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := f.Decode()
		if err != nil {
			return nil, err
		}
		if len(out) > 0 && img.Bounds().Size() != out[0].Bounds().Size() {
			return nil, errors.Errorf("util: %s is %v, first frame is %v", f.Path, img.Bounds().Size(), out[0].Bounds().Size())
		}
		out = append(out, img)
	}
	return out, nil
}
