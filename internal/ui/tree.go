package ui

import (
	"fmt"
	"io"
)

// TreeNode is one line of a rendered tree.
type TreeNode struct {
	Label    string
	Children []*TreeNode
}

// RenderTree writes roots with box-drawing connectors.
func RenderTree(w io.Writer, roots []*TreeNode) error {
	for _, r := range roots {
		if _, err := fmt.Fprintln(w, r.Label); err != nil {
			return err
		}
		if err := renderChildren(w, r.Children, ""); err != nil {
			return err
		}
	}
	return nil
}

func renderChildren(w io.Writer, children []*TreeNode, prefix string) error {
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		if _, err := fmt.Fprintln(w, prefix+RenderMuted(branch)+c.Label); err != nil {
			return err
		}
		if err := renderChildren(w, c.Children, prefix+RenderMuted(next)); err != nil {
			return err
		}
	}
	return nil
}
