package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qualimetry/qansible/internal/catalog"
)

func newRulesCmd(g *globals) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			mds := eng.cat.Rules()
			if profile != "" {
				keys, err := eng.cat.ActiveRuleKeys(profile)
				if err != nil {
					return configErr(err)
				}
				mds = mds[:0]
				for _, k := range keys {
					mds = append(mds, eng.cat.MetadataFor(k))
				}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSEVERITY\tTYPE\tTAGS\tNAME")
			for _, md := range mds {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", md.Key, md.Severity, md.Type, strings.Join(md.Tags, ","), md.Name)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d rule(s)\n", len(mds))
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Only list the rules active in this profile")
	return cmd
}

func newProfilesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List quality profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROFILE\tRULES\tDEFAULT")
			for _, name := range eng.cat.Profiles() {
				keys, _ := eng.cat.ActiveRuleKeys(name)
				def := ""
				if name == catalog.DefaultProfile {
					def = "yes"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(keys), def)
			}
			return tw.Flush()
		},
	}
}
