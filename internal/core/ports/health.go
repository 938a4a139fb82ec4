package ports

import "context"

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}

// DependencyStatus is the health of one dependency.
type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CheckAll pings every checker and reports whether all of them are healthy.
func CheckAll(ctx context.Context, checkers ...HealthChecker) (map[string]DependencyStatus, bool) {
	deps := make(map[string]DependencyStatus, len(checkers))
	allHealthy := true
	for _, checker := range checkers {
		if err := checker.Ping(ctx); err != nil {
			deps[checker.Name()] = DependencyStatus{Status: "unhealthy", Error: err.Error()}
			allHealthy = false
			continue
		}
		deps[checker.Name()] = DependencyStatus{Status: "healthy"}
	}
	return deps, allHealthy
}
