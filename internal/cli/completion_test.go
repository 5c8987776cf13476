package cli

import (
	"slices"
	"testing"

	"github.com/spf13/cobra"
)

func TestCompletePositional(t *testing.T) {
	root := newTestCLI().RootCommand()

	tests := []struct {
		cmd     []string
		args    []string
		want    []string
		wantDir cobra.ShellCompDirective
	}{
		{[]string{"view"}, nil, geometryExts, cobra.ShellCompDirectiveFilterFileExt},
		{[]string{"view"}, []string{"detector.gdml"}, dataExts, cobra.ShellCompDirectiveFilterFileExt},
		{[]string{"snapshot"}, []string{"detector.gdml", "events.db"}, nil, cobra.ShellCompDirectiveNoFileComp},
		{[]string{"events"}, nil, dataExts, cobra.ShellCompDirectiveFilterFileExt},
		{[]string{"geometry", "tree"}, nil, geometryExts, cobra.ShellCompDirectiveFilterFileExt},
		{[]string{"geometry", "extract"}, []string{"detector.gdml"}, nil, cobra.ShellCompDirectiveNoFileComp},
		{nil, []string{"detector.gdml"}, dataExts, cobra.ShellCompDirectiveFilterFileExt},
	}
	for _, tt := range tests {
		cmd, _, err := root.Find(tt.cmd)
		if err != nil {
			t.Fatalf("Find(%v): %v", tt.cmd, err)
		}
		if cmd.ValidArgsFunction == nil {
			t.Fatalf("%s has no argument completion", cmd.CommandPath())
		}
		got, dir := cmd.ValidArgsFunction(cmd, tt.args, "")
		if !slices.Equal(got, tt.want) || dir != tt.wantDir {
			t.Errorf("%s %v: got %v, %d; want %v, %d", cmd.CommandPath(), tt.args, got, dir, tt.want, tt.wantDir)
		}
	}
}
