package report

import "errors"

// MultiSink fans every write out to several sinks.
type MultiSink []Sink

// Exists is true only when every sink already holds the collection.
func (m MultiSink) Exists(name string) (bool, error) {
	if len(m) == 0 {
		return false, nil
	}
	for _, s := range m {
		ok, err := s.Exists(name)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Write writes c to every sink, attempting all of them.
func (m MultiSink) Write(c Collection) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
