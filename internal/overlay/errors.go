package overlay

import "fmt"

// FetchError reports a data or image location that could not be retrieved.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a payload that is not a valid feature collection.
type ParseError struct {
	Overlay  string
	Location string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("overlay %s: parsing %s: %v", e.Overlay, e.Location, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ImageLoadError reports a marker icon that could not be loaded or decoded.
type ImageLoadError struct {
	URL string
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("loading image %s: %v", e.URL, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }
