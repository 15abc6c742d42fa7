package exclude

import (
	"fmt"
	"io"
	"os"
	"time"
)

// itemKind labels a path for listings: LINK, DIR, FILE, or ERR when it can
// no longer be inspected.
func itemKind(path string) string {
	st, err := os.Lstat(path)
	switch {
	case err != nil:
		return "ERR"
	case st.Mode()&os.ModeSymlink != 0:
		return "LINK"
	case st.IsDir():
		return "DIR"
	case st.Mode().IsRegular():
		return "FILE"
	}
	return "???"
}

// WriteList prints one "- [KIND] rel: reason" line per excluded item.
func (c *Classifier) WriteList(w io.Writer) error {
	items := c.Excluded()
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "None")
		return err
	}
	for _, d := range items {
		if _, err := fmt.Fprintf(w, "- [%s] %s: %s\n", itemKind(d.Path), c.Rel(d.Path), d.Reason); err != nil {
			return err
		}
	}
	return nil
}

// WriteReport renders the exclusion report: totals per reason followed by
// the sorted item list.
func (c *Classifier) WriteReport(w io.Writer, generated time.Time) error {
	n := c.counts
	if _, err := fmt.Fprintf(w,
		"### Bfiles Exclusion Report ###\nGenerated: %s\nRoot Directory Scanned: %s\nTotal Excluded Items: %d\n",
		generated.Format(time.RFC3339), c.root, len(c.Excluded())); err != nil {
		return err
	}
	if c.useGitignore {
		if _, err := fmt.Fprintf(w, "Items Excluded by .gitignore: %d\n", n.Gitignore); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w,
		"Items Excluded by Config (Files): %d\nItems Excluded by Config (Dirs): %d\nItems Skipped by Limit: %d\nErrors during Scan/Exclusion: %d\n",
		n.ConfigFiles, n.ConfigDirs, n.Skipped, n.Errors); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n--- Excluded Items (Sorted by Path) ---\n"); err != nil {
		return err
	}
	if err := c.WriteList(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n--- End of Report ---\n")
	return err
}
