package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/snippetd/internal/hashdir"
)

// Represents the 'snippetd hash' command.
type HashCmd struct {
	Dir string `arg:"" type:"existingdir" help:"Directory to hash."`
}

// Executes the hash command.
func (c *HashCmd) Run(ctx context.Context) error {
	d, err := hashdir.Directory(c.Dir)
	if err != nil {
		return err
	}
	fmt.Println(d)
	return nil
}
