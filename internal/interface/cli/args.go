package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alem-hub/levelup/pkg/timeutil"
)

func intArg(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, value)
	}
	return n, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return timeutil.FormatDate(*t)
}
