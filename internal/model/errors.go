package model

import "errors"

var (
	// ErrUnsupportedCategory is returned for labels outside the known set.
	ErrUnsupportedCategory = errors.New("unsupported category")
	// ErrImageDecode means the staged file could not be read as an image.
	ErrImageDecode = errors.New("could not load the image")
	// ErrNetworkNotReady means the network was never loaded or was closed.
	ErrNetworkNotReady = errors.New("detection network not initialized")
)
