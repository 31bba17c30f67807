package fixture

import "fmt"

// DiscoveryError reports that the fixture directory could not be read.
// It is fatal: the harness has nothing to run.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover fixtures in %s: %v", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// FixtureReadError reports that a discovered fixture could not be read.
// The harness records it as a failing run for that fixture only.
type FixtureReadError struct {
	Fixture Fixture
	Err     error
}

func (e *FixtureReadError) Error() string {
	return fmt.Sprintf("read fixture %s: %v", e.Fixture.Path, e.Err)
}

func (e *FixtureReadError) Unwrap() error {
	return e.Err
}
