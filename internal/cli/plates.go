package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plate-api/internal/plate"
	"github.com/Brownie44l1/plate-api/internal/registry"
)

var (
	plateOwner string
	plateModel string
)

var platesCmd = &cobra.Command{
	Use:   "plates",
	Short: "Manage the plate registry",
}

var platesAddCmd = &cobra.Command{
	Use:   "add PLATE",
	Short: "Register or update a vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plate.Parse(args[0])
		if err != nil {
			return fmt.Errorf("%q: %w", args[0], err)
		}

		store, err := requireRegistry(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		v := registry.Vehicle{Plate: p, Owner: plateOwner, Model: plateModel}
		if err := store.Upsert(cmd.Context(), v); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", p)
		return nil
	},
}

var platesCheckCmd = &cobra.Command{
	Use:   "check PLATE",
	Short: "Look up a vehicle by plate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plate.Parse(args[0])
		if err != nil {
			return fmt.Errorf("%q: %w", args[0], err)
		}

		store, err := requireRegistry(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		v, err := store.Lookup(cmd.Context(), p)
		if errors.Is(err, registry.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not registered\n", p)
			return nil
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func init() {
	platesAddCmd.Flags().StringVar(&plateOwner, "owner", "", "Vehicle owner")
	platesAddCmd.Flags().StringVar(&plateModel, "vehicle-model", "", "Vehicle make and model")

	platesCmd.AddCommand(platesAddCmd, platesCheckCmd)
	rootCmd.AddCommand(platesCmd)
}

func requireRegistry(cmd *cobra.Command) (*registry.Store, error) {
	store, err := openRegistry(cmd.Context())
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("no database configured: set DATABASE_URL or pass --db")
	}
	return store, nil
}
