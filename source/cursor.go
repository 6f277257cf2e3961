package source

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/c360/driftview/errors"
)

const cursorPrefix = "dimension:"

// encodeCursor renders a row position as an opaque token.
func encodeCursor(pos int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(pos)))
}

func decodeCursor(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "source", "decodeCursor",
			fmt.Sprintf("cursor %q is not base64", cursor))
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "source", "decodeCursor",
			fmt.Sprintf("cursor %q has unknown prefix", cursor))
	}
	// MaxInt is reserved as the open upper bound of a page window.
	pos, err := strconv.Atoi(s)
	if err != nil || pos < 0 || pos == math.MaxInt {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "source", "decodeCursor",
			fmt.Sprintf("cursor %q has bad position", cursor))
	}
	return pos, nil
}
