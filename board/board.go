package board

import (
	"errors"
	"fmt"
)

// ErrInvalidBoard is returned when a board definition violates the link
// table rules. It is fatal at startup.
var ErrInvalidBoard = errors.New("invalid board configuration")

// Board is the static race track: size cells numbered 1..size, plus a link
// table mapping a source cell to a destination cell (ladders jump forward,
// snakes jump back). Immutable after construction, safe to share across all
// rooms.
type Board struct {
	size  int
	links map[int]int
}

// New validates the link table and builds a board.
//
// Rules enforced: every source and destination is inside 1..size, a source
// never maps to itself, and a destination is never itself a source, so one
// lookup fully resolves a move and jump chains cannot loop.
func New(size int, links map[int]int) (*Board, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: size %d is too small", ErrInvalidBoard, size)
	}

	for src, dst := range links {
		if src < 1 || src > size {
			return nil, fmt.Errorf("%w: link source %d outside 1..%d", ErrInvalidBoard, src, size)
		}
		if dst < 1 || dst > size {
			return nil, fmt.Errorf("%w: link %d->%d destination outside 1..%d", ErrInvalidBoard, src, dst, size)
		}
		if src == dst {
			return nil, fmt.Errorf("%w: link %d maps to itself", ErrInvalidBoard, src)
		}
		if _, chained := links[dst]; chained {
			return nil, fmt.Errorf("%w: link %d->%d chains into another link", ErrInvalidBoard, src, dst)
		}
	}

	b := &Board{
		size:  size,
		links: make(map[int]int, len(links)),
	}
	for src, dst := range links {
		b.links[src] = dst
	}
	return b, nil
}

// Resolve applies at most one link lookup and returns the cell unchanged
// when no link starts there.
func (b *Board) Resolve(cell int) int {
	if dst, ok := b.links[cell]; ok {
		return dst
	}
	return cell
}

// IsGoal reports whether cell is the final cell.
func (b *Board) IsGoal(cell int) bool {
	return cell == b.size
}

func (b *Board) Size() int {
	return b.size
}

// Links returns a copy of the link table, for snapshots sent to clients.
func (b *Board) Links() map[int]int {
	links := make(map[int]int, len(b.links))
	for src, dst := range b.links {
		links[src] = dst
	}
	return links
}

// ClassicLinks is the traditional 100-cell snakes-and-ladders table, used
// when no link table is configured.
func ClassicLinks() map[int]int {
	return map[int]int{
		// ladders
		1: 38, 4: 14, 9: 31, 21: 42, 28: 84,
		36: 44, 51: 67, 71: 91, 80: 100,
		// snakes
		16: 6, 47: 26, 49: 11, 56: 53, 62: 19,
		64: 60, 87: 24, 93: 73, 95: 75, 98: 78,
	}
}
