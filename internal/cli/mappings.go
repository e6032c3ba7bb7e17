package cli

import (
	"errors"
	"fmt"

	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DefaultCategory receives mappings added without --category
const DefaultCategory = "custom"

// maxSuggestions bounds the hints printed after a failed lookup
const maxSuggestions = 5

// debugLimit bounds the entries debug-mappings prints
const debugLimit = 10

// resolve maps name to a package ID. Names that are not aliases but look
// like package IDs are used as-is.
func (a *app) resolve(name string) (string, error) {
	id, err := a.registry.Resolve(name)
	if err == nil {
		return id, nil
	}
	if utils.IsPackageID(name) {
		logrus.Debugf("No mapping for %s, using it as a package ID", name)
		return name, nil
	}

	if matches := a.registry.Suggest(name); len(matches) > 0 {
		fmt.Fprintf(a.out, "Similar mappings for '%s':\n", name)
		for i, e := range matches {
			if i == maxSuggestions {
				fmt.Fprintf(a.out, "  ... and %d more\n", len(matches)-maxSuggestions)
				break
			}
			fmt.Fprintf(a.out, "  %-25s -> %s\n", e.Alias, e.PackageID)
		}
	}
	return "", err
}

// persistError makes a failed save stand out from lookup failures
func persistError(err error) error {
	if errors.Is(err, models.ErrPersistFailed) {
		return fmt.Errorf("mapping change was not saved, mappings file left unchanged: %w", err)
	}
	return err
}

func newResolveCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a friendly name to its package ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			id, err := a.resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Resolved: %s -> %s\n", args[0], id)

			if aliases := a.registry.ReverseLookup(id); len(aliases) > 1 {
				fmt.Fprintf(a.out, "Also known as: %v\n", aliases)
			}
			return nil
		},
	}
}

func newMappingsCmd(env *environment) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "List package mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			entries := a.registry.List(category)
			if len(entries) == 0 {
				fmt.Fprintln(a.out, "No package mappings found")
				return nil
			}

			fmt.Fprintln(a.out, "Package Mappings:")
			current := "\x00"
			for _, e := range entries {
				if e.Category != current {
					current = e.Category
					if current == "" {
						fmt.Fprintln(a.out, "\n[uncategorized]")
					} else {
						fmt.Fprintf(a.out, "\n[%s]\n", current)
					}
				}
				fmt.Fprintf(a.out, "  %-25s -> %s\n", e.Alias, e.PackageID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list this category")

	return cmd
}

func newAddMappingCmd(env *environment) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add-mapping <name> <package-id>",
		Short: "Map a friendly name to a package ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			alias, packageID := args[0], args[1]
			if !utils.IsPackageID(packageID) {
				logrus.Warnf("%s does not look like an Android package ID", packageID)
			}

			if err := a.registry.Add(alias, packageID, category); err != nil {
				return persistError(err)
			}
			fmt.Fprintf(a.out, "Added mapping: %s -> %s (%s)\n", alias, packageID, category)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", DefaultCategory, "Category to add the mapping to")

	return cmd
}

func newRemoveMappingCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-mapping <name>",
		Short: "Remove a package mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			if err := a.registry.Remove(args[0]); err != nil {
				return persistError(err)
			}
			fmt.Fprintf(a.out, "Removed mapping: %s\n", args[0])
			return nil
		},
	}
}

func newListCategoriesCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list-categories",
		Short: "List mapping categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			categories := a.registry.ListCategories()
			if len(categories) == 0 {
				fmt.Fprintln(a.out, "No categories found")
				return nil
			}

			fmt.Fprintln(a.out, "Available Categories:")
			for _, c := range categories {
				fmt.Fprintf(a.out, "  %s (%d packages)\n", c, len(a.registry.List(c)))
			}
			return nil
		},
	}
}

func newDebugMappingsCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "debug-mappings [name]",
		Short: "Show how mappings were loaded and which aliases match name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Mappings file: %s\n", a.cfg.MappingsFile)
			if a.registry.Len() == 0 {
				fmt.Fprintln(a.out, "No mappings loaded")
				return nil
			}
			fmt.Fprintf(a.out, "Total mappings: %d in %d categories\n",
				a.registry.Len(), len(a.registry.ListCategories()))

			if len(args) == 0 {
				fmt.Fprintf(a.out, "\nFirst %d mappings:\n", debugLimit)
				printEntries(a, a.registry.List(""), debugLimit)
				return nil
			}

			name := args[0]
			fmt.Fprintf(a.out, "\nSearching for '%s':\n", name)
			if id, err := a.registry.Resolve(name); err == nil {
				fmt.Fprintf(a.out, "Direct match: %s -> %s\n", name, id)
			}

			matches := a.registry.Suggest(name)
			if len(matches) == 0 {
				fmt.Fprintln(a.out, "No matches found")
				return nil
			}
			fmt.Fprintf(a.out, "Partial matches (%d):\n", len(matches))
			printEntries(a, matches, debugLimit)
			return nil
		},
	}
}

func printEntries(a *app, entries []models.AliasEntry, limit int) {
	for i, e := range entries {
		if i == limit {
			fmt.Fprintf(a.out, "  ... and %d more\n", len(entries)-limit)
			return
		}
		category := e.Category
		if category == "" {
			category = "uncategorized"
		}
		fmt.Fprintf(a.out, "  %-25s -> %s [%s]\n", e.Alias, e.PackageID, category)
	}
}
