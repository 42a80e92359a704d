package selection

// Cursor is the scroll and selection state over a view of n items shown
// in a viewport of Height rows. Selected is -1 when the view is empty.
//
// Every method returns a cursor satisfying, for the n it was given:
// n == 0 gives Offset 0 and Selected -1; otherwise
// 0 <= Offset <= Selected < Offset+Height, and Offset is 0 when n < Height.
type Cursor struct {
	Offset   int
	Selected int
	Height   int
}

func NewCursor(height, n int) Cursor {
	return Cursor{Height: max(height, 1)}.Select(0, n)
}

func (c Cursor) Empty() bool {
	return c.Selected < 0
}

// Next moves the selection down one row, wrapping to the top.
func (c Cursor) Next(n int) Cursor {
	if n < 2 {
		return c.normalize(n)
	}
	next := c.Selected + 1
	switch {
	case next >= n:
		c.Selected, c.Offset = 0, 0
	case next >= c.Offset+c.Height:
		c.Selected, c.Offset = next, c.Offset+1
	default:
		c.Selected = next
	}
	return c.normalize(n)
}

// Prev moves the selection up one row, wrapping to the bottom.
func (c Cursor) Prev(n int) Cursor {
	if n < 2 {
		return c.normalize(n)
	}
	prev := c.Selected - 1
	switch {
	case prev < 0:
		c.Selected, c.Offset = n-1, max(n-c.Height, 0)
	case prev < c.Offset:
		c.Selected, c.Offset = prev, c.Offset-1
	default:
		c.Selected = prev
	}
	return c.normalize(n)
}

// Select moves the selection to i and scrolls the least distance needed
// to show it, so an item below the window ends up on the bottom row.
func (c Cursor) Select(i, n int) Cursor {
	c.Selected = i
	return c.normalize(n)
}

// Resize changes the viewport height, keeping the selection.
func (c Cursor) Resize(height, n int) Cursor {
	c.Height = max(height, 1)
	return c.normalize(n)
}

func (c Cursor) normalize(n int) Cursor {
	c.Height = max(c.Height, 1)
	if n <= 0 {
		c.Offset, c.Selected = 0, -1
		return c
	}
	c.Selected = min(max(c.Selected, 0), n-1)
	if c.Selected < c.Offset {
		c.Offset = c.Selected
	}
	if c.Selected >= c.Offset+c.Height {
		c.Offset = c.Selected - c.Height + 1
	}
	c.Offset = min(max(c.Offset, 0), max(n-c.Height, 0))
	return c
}
