package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cardmap/cardmap-cli/internal/model"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Inspect and toggle marker group visibility",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups with visibility and item counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initBoard(ctx, "groups")
		if err != nil {
			return err
		}
		defer env.Close()

		groups := env.Session.Groups()
		vis := env.Session.Visibility()

		items := make(map[string]int)
		located := make(map[string]int)
		for _, it := range env.Session.Items() {
			gid := model.GroupIDFor(groups, it.CategoryID)
			if gid == "" {
				continue
			}
			items[gid]++
			if it.Coords != nil {
				located[gid]++
			}
		}

		fmt.Println("=== Groups ===")
		for _, g := range groups {
			mark := " "
			if vis.Visible[g.ID] {
				mark = "*"
			}
			fmt.Printf("%s %-24s %-16s %3d items, %3d located\n", mark, g.Name, g.ID, items[g.ID], located[g.ID])
		}
		fmt.Println()
		fmt.Printf("include done: %v, include templates: %v\n", vis.IncludeDone, vis.IncludeTemplates)
		return nil
	},
}

var groupsShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Make a group's markers visible",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setGroupVisible(cmd, args[0], true)
	},
}

var groupsHideCmd = &cobra.Command{
	Use:   "hide <group-id>",
	Short: "Hide a group's markers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setGroupVisible(cmd, args[0], false)
	},
}

var groupsDefaultCmd = &cobra.Command{
	Use:   "default <group-id> <on|off>",
	Short: "Set a group's default visibility for boards without saved state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}

		env, err := initBoard(ctx, "groups")
		if err != nil {
			return err
		}
		defer env.Close()

		if !env.Session.HasGroup(args[0]) {
			return eris.Errorf("unknown group: %s", args[0])
		}
		if err := env.Store.SaveGroupDefault(ctx, env.Session.BoardID(), args[0], on); err != nil {
			return eris.Wrap(err, "save group default")
		}

		fmt.Printf("Default for group %s set to %s.\n", args[0], args[1])
		return nil
	},
}

func setGroupVisible(cmd *cobra.Command, groupID string, on bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initBoard(ctx, "groups")
	if err != nil {
		return err
	}
	defer env.Close()

	state, ok := env.Session.SetGroupVisible(groupID, on)
	if !ok {
		return eris.Errorf("unknown group: %s", groupID)
	}
	if err := env.Store.SaveVisibilityState(ctx, env.Session.BoardID(), state); err != nil {
		return eris.Wrap(err, "save visibility state")
	}
	env.Resync()

	word := "hidden"
	if on {
		word = "visible"
	}
	fmt.Printf("Group %s is now %s; %d markers on the map.\n", groupID, word, len(env.Reconciler.Markers()))
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	default:
		return false, eris.Errorf("expected on or off, got %q", s)
	}
}

func init() {
	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsShowCmd)
	groupsCmd.AddCommand(groupsHideCmd)
	groupsCmd.AddCommand(groupsDefaultCmd)
	rootCmd.AddCommand(groupsCmd)
}
