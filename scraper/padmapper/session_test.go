package padmapper

import (
	"context"
	"time"
)

// fakeSession scripts the browser surface for tests. Behavior is provided
// through closures; zero-value fields mean "succeed and do nothing".
type fakeSession struct {
	htmlFn     func() (string, error)
	waitForFn  func(selector string, timeout time.Duration) error
	evaluateFn func(script string, out any) error

	navigated []string
	cleared   int
	released  bool
}

func (s *fakeSession) Navigate(url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) WaitFor(selector string, timeout time.Duration) error {
	if s.waitForFn != nil {
		return s.waitForFn(selector, timeout)
	}
	return nil
}

func (s *fakeSession) Evaluate(script string, out any) error {
	if s.evaluateFn != nil {
		return s.evaluateFn(script, out)
	}
	return nil
}

func (s *fakeSession) Screenshot(path string) error { return nil }

func (s *fakeSession) HTML() (string, error) {
	if s.htmlFn != nil {
		return s.htmlFn()
	}
	return "", nil
}

func (s *fakeSession) ClearCookies() error {
	s.cleared++
	return nil
}

func (s *fakeSession) Release() { s.released = true }

type fakeFactory struct {
	session  Session
	err      error
	acquired int
}

func (f *fakeFactory) Acquire(ctx context.Context) (Session, error) {
	f.acquired++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}
