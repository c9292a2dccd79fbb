package codec

import (
	"math"
	"strconv"

	apperrors "github.com/roomrelay/roomrelay/internal/errors"
)

// Grid is a rectangular two-dimensional payload stored row-major. Cols and
// Rows are preserved across the wire even when the grid holds no cells.
type Grid[T Element] struct {
	Cols  int
	Rows  int
	Cells []T
}

// GridOf builds a grid from row-major cells. It fails with INVALID_SHAPE when
// the cell count does not equal cols*rows.
func GridOf[T Element](cols, rows int, cells []T) (Grid[T], error) {
	g := Grid[T]{Cols: cols, Rows: rows, Cells: cells}
	if err := g.validate(); err != nil {
		return Grid[T]{}, err
	}
	if g.Cells == nil {
		g.Cells = []T{}
	}
	return g, nil
}

// NewGrid builds a grid from a slice of rows. All rows must have the same
// length; a jagged input fails with INVALID_SHAPE.
func NewGrid[T Element](rows [][]T) (Grid[T], error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	cells := make([]T, 0, cols*len(rows))
	for i, row := range rows {
		if len(row) != cols {
			return Grid[T]{}, apperrors.WithMetadata(apperrors.CodeInvalidShape,
				"grid rows must have equal length",
				map[string]string{"row": strconv.Itoa(i), "want": strconv.Itoa(cols), "got": strconv.Itoa(len(row))})
		}
		cells = append(cells, row...)
	}
	return Grid[T]{Cols: cols, Rows: len(rows), Cells: cells}, nil
}

// At returns the cell at column x, row y.
func (g Grid[T]) At(x, y int) T {
	return g.Cells[y*g.Cols+x]
}

// RowSlices returns the grid as a slice of rows sharing the grid's storage.
func (g Grid[T]) RowSlices() [][]T {
	out := make([][]T, g.Rows)
	for y := range out {
		out[y] = g.Cells[y*g.Cols : (y+1)*g.Cols]
	}
	return out
}

func (g Grid[T]) Type() Type {
	return Type{Shape: ShapeGrid, Elem: kindOf[T]()}
}

func (g Grid[T]) validate() error {
	if g.Cols < 0 || g.Rows < 0 {
		return apperrors.New(apperrors.CodeInvalidShape, "grid dimensions must not be negative")
	}
	if uint64(g.Cols) > math.MaxUint32 || uint64(g.Rows) > math.MaxUint32 {
		return apperrors.WithMetadata(apperrors.CodeInvalidShape,
			"grid dimensions exceed the wire range",
			map[string]string{"cols": strconv.Itoa(g.Cols), "rows": strconv.Itoa(g.Rows)})
	}
	n := len(g.Cells)
	// Cols <= n/Rows bounds the product by n, so it cannot overflow.
	fits := n == 0 && (g.Cols == 0 || g.Rows == 0)
	if g.Rows != 0 && g.Cols <= n/g.Rows {
		fits = g.Cols*g.Rows == n
	}
	if !fits {
		return apperrors.WithMetadata(apperrors.CodeInvalidShape,
			"grid cell count does not match dimensions",
			map[string]string{"cols": strconv.Itoa(g.Cols), "rows": strconv.Itoa(g.Rows), "cells": strconv.Itoa(len(g.Cells))})
	}
	return nil
}

func (g Grid[T]) encode() (envelope, error) {
	if err := g.validate(); err != nil {
		return envelope{}, err
	}
	cells := g.Cells
	if cells == nil {
		cells = []T{}
	}
	if err := checkText(cells); err != nil {
		return envelope{}, err
	}
	data, err := encMode.Marshal(cells)
	if err != nil {
		return envelope{}, err
	}
	return envelope{
		Shape: ShapeGrid,
		Elem:  kindOf[T](),
		Cols:  uint32(g.Cols),
		Rows:  uint32(g.Rows),
		Data:  data,
	}, nil
}
