package tree_test

import (
	"fmt"

	"github.com/matzehuels/sensortree/pkg/tree"
)

func ExampleForest() {
	f := tree.New()
	_ = f.Add(tree.Node{ID: "GRFL", Name: "GRFL", Type: tree.LevelType(0)})
	_ = f.Add(tree.Node{ID: tree.ChildID("GRFL", "Hot Strip"), Name: "Hot Strip", Type: tree.LevelType(1), ParentID: "GRFL"})

	fmt.Println("Roots:", f.Roots())
	fmt.Println("Children:", f.Children("GRFL"))
	fmt.Println("Depth:", f.Depth("GRFL/Hot_Strip"))
	fmt.Println("Valid:", f.Validate() == nil)
	// Output:
	// Roots: [GRFL]
	// Children: [GRFL/Hot_Strip]
	// Depth: 1
	// Valid: true
}

func ExampleSlug() {
	fmt.Println(tree.Slug("  Cooling Tower #2 "))
	fmt.Println(tree.Slug(""))
	// Output:
	// Cooling_Tower_2
	// node
}
