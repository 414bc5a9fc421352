package inventory

import (
	"sort"
	"strings"
)

// RenderTree converts a list of relative file paths into a visual tree
// string for prompt context.
// Example:
//
//	src
//	├── main.go
//	└── utils
//	    └── helper.go
func RenderTree(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	root := make(map[string]any)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		current := root
		for _, part := range strings.Split(p, "/") {
			if part == "" || part == "." {
				continue
			}
			if _, ok := current[part]; !ok {
				current[part] = make(map[string]any)
			}
			current = current[part].(map[string]any)
		}
	}

	var sb strings.Builder
	renderNode(&sb, root, "")
	return strings.TrimSpace(sb.String())
}

func renderNode(sb *strings.Builder, node map[string]any, prefix string) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		isLast := i == len(keys)-1
		sb.WriteString(prefix)
		if isLast {
			sb.WriteString("└── ")
		} else {
			sb.WriteString("├── ")
		}
		sb.WriteString(k)
		sb.WriteString("\n")

		children := node[k].(map[string]any)
		if len(children) > 0 {
			newPrefix := prefix
			if isLast {
				newPrefix += "    "
			} else {
				newPrefix += "│   "
			}
			renderNode(sb, children, newPrefix)
		}
	}
}
