package tasks

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

const rule = "------------------------------"

// IsSubTask reports whether name is listed under sub tasks: names joined
// with "-", ":" or "_" are helpers of a main task.
func IsSubTask(name string) bool {
	return strings.ContainsAny(name, "-:_")
}

func (c *Catalogue) help(ctx context.Context) error {
	var main, sub []string
	for _, name := range c.registry.Names() {
		if IsSubTask(name) {
			sub = append(sub, name)
		} else {
			main = append(main, name)
		}
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	c.section(w, "Main Tasks", main)
	fmt.Fprintln(w)
	c.section(w, "Sub Tasks", sub)
	return w.Flush()
}

func (c *Catalogue) section(w *tabwriter.Writer, title string, names []string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
	for _, name := range names {
		def, _ := c.registry.Lookup(name)
		fmt.Fprintf(w, "    %s\t%s\n", name, def.Description)
	}
}
