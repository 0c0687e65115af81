package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kalambet/motivate/internal/api"
	"github.com/kalambet/motivate/internal/config"
	"github.com/kalambet/motivate/internal/motivation"
	"github.com/kalambet/motivate/internal/storage"
)

// addUpdateFlags registers the flags shared by generate and ask.
func addUpdateFlags(fs *pflag.FlagSet) {
	fs.String("mood", "", "current mood (excited, motivated, neutral, frustrated, overwhelmed)")
	fs.String("energy", "", "energy level (high, medium, low)")
	fs.String("stress", "", "stress level (low, medium, high, critical)")
	fs.StringSlice("goal", nil, "goal, repeatable; the first one personalizes messages")
	fs.StringSlice("challenge", nil, "challenge, repeatable")
	fs.String("motivation-type", "", "initial motivation type for a new user (achievement, security, freedom, growth, contribution)")
	fs.Bool("json", false, "print the full state as JSON")
}

// updateFromFlags reads the update fields. Goals and challenges stay nil
// unless their flag was given, so an unset flag keeps the stored list.
func updateFromFlags(fs *pflag.FlagSet) motivation.Update {
	mood, _ := fs.GetString("mood")
	energy, _ := fs.GetString("energy")
	stress, _ := fs.GetString("stress")
	u := motivation.Update{
		Mood:        motivation.Mood(mood),
		EnergyLevel: motivation.EnergyLevel(energy),
		StressLevel: motivation.StressLevel(stress),
	}
	if fs.Changed("goal") {
		u.Goals, _ = fs.GetStringSlice("goal")
	}
	if fs.Changed("challenge") {
		u.Challenges, _ = fs.GetStringSlice("challenge")
	}
	return u
}

func printResult(w io.Writer, asJSON bool, s motivation.State) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	renderState(w, s)
	return nil
}

// --- generate ---

type generateOptions struct {
	UserID      string
	Seed        motivation.Seed
	Update      motivation.Update
	RandSeed    uint64
	CatalogPath string
}

// generateOffline runs a single pipeline pass without a server.
func generateOffline(o generateOptions) (motivation.State, error) {
	catalog, err := loadCatalog(o.CatalogPath)
	if err != nil {
		return motivation.State{}, err
	}
	opts := motivation.Options{Catalog: catalog}
	if o.RandSeed != 0 {
		opts.Rand = motivation.NewSeededRand(o.RandSeed)
	}
	e, err := motivation.NewWithOptions(o.UserID, o.Seed, opts)
	if err != nil {
		return motivation.State{}, err
	}
	return e.Generate(o.Update)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate motivation locally, without a running server",
	Long: `Generate motivation locally, without a running server.

Examples:
  motivate generate --mood frustrated --stress high --goal "løpe maraton"
  motivate generate --mood excited --strength kreativitet --seed 42 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := cmd.Flags()
		userID, _ := fs.GetString("user")
		mt, _ := fs.GetString("motivation-type")
		strengths, _ := fs.GetStringSlice("strength")
		randSeed, _ := fs.GetUint64("seed")
		catalogPath, _ := fs.GetString("catalog")
		asJSON, _ := fs.GetBool("json")

		state, err := generateOffline(generateOptions{
			UserID:      userID,
			Seed:        motivation.Seed{MotivationType: motivation.MotivationType(mt), Strengths: strengths},
			Update:      updateFromFlags(fs),
			RandSeed:    randSeed,
			CatalogPath: catalogPath,
		})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), asJSON, state)
	},
}

func init() {
	addUpdateFlags(generateCmd.Flags())
	generateCmd.Flags().String("user", "local", "user id")
	generateCmd.Flags().StringSlice("strength", nil, "strength, repeatable")
	generateCmd.Flags().Uint64("seed", 0, "random seed for reproducible template choice (0 = random)")
	generateCmd.Flags().String("catalog", "", "path to an alternative YAML catalog")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <user-id>",
	Short: "Generate motivation for a user on the running server",
	Long: `Generate motivation for a user on the running server.

Examples:
  motivate ask anna --mood overwhelmed --energy low
  motivate ask anna --goal "ny jobb" --explain`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		fs := cmd.Flags()
		asJSON, _ := fs.GetBool("json")
		explain, _ := fs.GetBool("explain")

		state, err := askRemote(cmd.Context(), client, args[0], fs)
		if err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), asJSON, state); err != nil {
			return err
		}
		if !explain {
			return nil
		}
		summary, err := explainRemote(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", colorize(colorDim, summary))
		return nil
	},
}

func askRemote(ctx context.Context, c *apiClient, userID string, fs *pflag.FlagSet) (motivation.State, error) {
	req := api.GenerateRequest{Update: updateFromFlags(fs)}
	if mt, _ := fs.GetString("motivation-type"); mt != "" {
		req.Seed = &motivation.Seed{MotivationType: motivation.MotivationType(mt)}
	}

	resp, err := c.post(ctx, "/users/"+url.PathEscape(userID)+"/motivation", req)
	if err != nil {
		return motivation.State{}, err
	}
	var state motivation.State
	if err := decodeJSON(resp, &state); err != nil {
		return motivation.State{}, err
	}
	return state, nil
}

func explainRemote(ctx context.Context, c *apiClient, userID string) (string, error) {
	resp, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/explain")
	if err != nil {
		return "", err
	}
	var body struct {
		Summary string `json:"summary"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	return body.Summary, nil
}

func init() {
	addUpdateFlags(askCmd.Flags())
	askCmd.Flags().Bool("explain", false, "also print the explainability summary")
}

// --- forget ---

var forgetCmd = &cobra.Command{
	Use:   "forget <user-id>",
	Short: "Drop a user's engine and journaled runs on the running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/users/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result struct {
			RunsDeleted int64 `json:"runsDeleted"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Forgot %s (%d runs deleted)", args[0], result.RunsDeleted)
		return nil
	},
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run journal",
}

var runsListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's journaled runs, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/users/%s/runs?limit=%d&offset=%d", url.PathEscape(args[0]), limit, offset)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result api.RunsResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(result.Runs) == 0 {
			fmt.Fprintln(w, "No runs found.")
			return nil
		}
		for _, r := range result.Runs {
			id := r.ID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Fprintf(w, "%s  %s  %-12s %-11s %-6s %-8s %d%%  %s\n",
				colorize(colorCyan, id),
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.MotivationType, r.Mood, r.EnergyLevel, r.StressLevel,
				r.Effectiveness, r.Techniques,
			)
		}
		if shown := result.Offset + len(result.Runs); shown < result.Total {
			fmt.Fprintf(w, "%s\n", colorize(colorDim, fmt.Sprintf("%d of %d runs shown", shown, result.Total)))
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <user-id> <run-id>",
	Short: "Show a single journaled run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/users/"+url.PathEscape(args[0])+"/runs/"+url.PathEscape(args[1]))
		if err != nil {
			return err
		}
		var run storage.Run
		if err := decodeJSON(resp, &run); err != nil {
			return err
		}

		var techniques []string
		if err := json.Unmarshal([]byte(run.Techniques), &techniques); err != nil {
			techniques = []string{run.Techniques}
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Run"), run.ID)
		fmt.Fprintf(w, "  Time:        %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  Type:        %s\n", run.MotivationType)
		fmt.Fprintf(w, "  Context:     %s / %s energy / %s stress\n", run.Mood, run.EnergyLevel, run.StressLevel)
		fmt.Fprintf(w, "  Techniques:  %s\n", strings.Join(techniques, ", "))
		fmt.Fprintf(w, "  Messages:    %d\n", run.MessageCount)
		fmt.Fprintf(w, "  Score:       %d%%\n", run.Effectiveness)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %v)", err, config.ValidKeys())
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
