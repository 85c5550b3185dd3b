package main

import (
	"github.com/nvr-ai/go-lpr/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// source is a controller.Source the command owns.
type source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// openSource picks the input: a single image, a directory, a video file or a device.
func openSource(opts options, log logrus.FieldLogger) (source, error) {
	switch {
	case opts.image != "":
		f, err := util.LoadImageFile(opts.image)
		if err != nil {
			return nil, err
		}
		return &fileSource{files: []util.ImageFile{f}, log: log}, nil
	case opts.dir != "":
		files, err := util.LoadDirectoryImageFiles(opts.dir)
		if err != nil {
			return nil, err
		}
		log.WithField("files", len(files)).Info("reading image directory")
		return &fileSource{files: files, log: log}, nil
	case opts.video != "":
		vc, err := gocv.OpenVideoCapture(opts.video)
		if err != nil {
			return nil, errors.Wrapf(err, "open video %s", opts.video)
		}
		return vc, nil
	default:
		vc, err := gocv.OpenVideoCapture(opts.device)
		if err != nil {
			return nil, errors.Wrapf(err, "open device %d", opts.device)
		}
		return vc, nil
	}
}

// fileSource replays decoded image files as frames.
type fileSource struct {
	files []util.ImageFile
	next  int
	log   logrus.FieldLogger
}

// Read decodes the next file into dst. Undecodable files produce an empty frame.
func (s *fileSource) Read(dst *gocv.Mat) bool {
	if s.next >= len(s.files) {
		return false
	}
	f := s.files[s.next]
	s.next++

	mat, err := util.DecodeImageFile(f)
	if err != nil {
		s.log.WithError(err).Warn("skipping image")
		mat.Close()
		dst.Close()
		*dst = gocv.NewMat()
		return true
	}
	dst.Close()
	*dst = mat
	return true
}

func (s *fileSource) Close() error {
	return nil
}
