package fleetcore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseBoard parses a comma separated, optionally percent-encoded list of
// positions such as "0,1,2" or "0%2C1%2C2".
func ParseBoard(s string) ([]uint8, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return nil, fmt.Errorf("invalid board placement: %w", err)
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return []uint8{}, nil
	}

	parts := strings.Split(decoded, ",")
	board := make([]uint8, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in board placement", p)
		}
		board = append(board, uint8(v))
	}
	return board, nil
}

// FormatBoard renders a board in the form accepted by ParseBoard.
func FormatBoard(board []uint8) string {
	parts := make([]string, len(board))
	for i, p := range board {
		parts[i] = strconv.Itoa(int(p))
	}
	return strings.Join(parts, ",")
}

// ParseCoordinates converts a column letter A-J and a row digit 0-9 to a
// position.
func ParseCoordinates(x, y string) (uint8, error) {
	if x == "" {
		return 0, fmt.Errorf("missing X coordinate")
	}
	if y == "" {
		return 0, fmt.Errorf("missing Y coordinate")
	}
	cx := strings.ToUpper(x)[0]
	if cx < 'A' || cx > 'J' {
		return 0, fmt.Errorf("X coordinate must be between A and J, got %q", x)
	}
	cy := y[0]
	if cy < '0' || cy > '9' {
		return 0, fmt.Errorf("Y coordinate must be between 0 and 9, got %q", y)
	}
	return Position(cx-'A', cy-'0'), nil
}

// FormatPosition renders a position as column letter and row digit, e.g. B7.
func FormatPosition(pos uint8) string {
	x, y := XY(pos)
	return fmt.Sprintf("%c%d", 'A'+x, y)
}
