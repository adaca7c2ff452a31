package cmds

import "github.com/spf13/cobra"

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newFollowCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newBuildsCmd())
	root.AddCommand(newWatchCmd())
	return nil
}
