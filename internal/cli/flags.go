package cli

import (
	"fmt"
	"regexp"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/exec"
)

// ParseTimeout parses a timeout flag into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration < 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout '%s' can't be negative", flag),
			"Use a positive duration, or leave the flag off for no timeout.")
	}
	return duration, nil
}

// parseSteps turns repeated --step flags into expect steps.
func parseSteps(flags []string) ([]exec.Step, error) {
	if len(flags) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No expect steps given",
			"Add at least one --step 'pattern=>response'.")
	}
	steps := make([]exec.Step, 0, len(flags))
	for _, f := range flags {
		step, err := exec.ParseStep(f)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseUntil compiles the --until pattern for watch.
func parseUntil(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, errors.New(errors.ErrConfig,
			"watch needs an --until pattern",
			"Pass --until with a regular expression the output should match, e.g. --until 'Ready'.")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("--until %q isn't a valid regular expression", pattern),
			"Check the pattern syntax; see 'go doc regexp/syntax'.")
	}
	return re, nil
}
