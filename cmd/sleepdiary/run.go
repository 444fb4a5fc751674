package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/definition"
	"github.com/NicklasHM/P3-sleep-diary/internal/cli"
	"github.com/NicklasHM/P3-sleep-diary/internal/presentation/tui"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [definition]",
	Short: "Answer a diary in the terminal",
	Long: `Starts the wizard in the terminal. With a definition file the diary is
answered against that file; otherwise the configured store is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.AppOptions{}
		diary, _ := cmd.Flags().GetString("type")
		if len(args) == 1 {
			def, err := definition.LoadFile(args[0])
			if err != nil {
				return err
			}
			if err := def.Check(); err != nil {
				return err
			}
			opts.Definitions = append(opts.Definitions, def)
			if !cmd.Flags().Changed("type") {
				diary = string(def.Questionnaire.Type)
			}
		}

		ctx, stop := signalContext()
		defer stop()

		app, err := cli.NewApp(ctx, cfg, logger, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		respondent, _ := cmd.Flags().GetString("respondent")
		sessionID, _ := cmd.Flags().GetString("session")
		lang, _ := cmd.Flags().GetString("language")
		locale := cfg.DefaultLocale()
		if lang != "" {
			locale = domain.ParseLocale(lang)
		}

		_, err = cli.RunWizard(ctx, app, cli.WizardOptions{
			Type:         domain.QuestionnaireType(diary),
			RespondentID: respondent,
			Locale:       locale,
			SessionID:    sessionID,
			In:           os.Stdin,
			Out:          cmd.OutOrStdout(),
			Banner:       true,
		})
		if errors.Is(err, tui.ErrQuit) {
			return nil
		}
		if errors.Is(err, domain.ErrResponseExists) {
			return fmt.Errorf("you already answered the %s diary today", diary)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("type", string(domain.QuestionnaireMorning), "Diary to answer: morning or evening")
	runCmd.Flags().String("respondent", "", "Respondent ID stored with the response")
	runCmd.Flags().String("session", "", "Session ID; an unfinished session with this ID is resumed")
	runCmd.Flags().String("language", "", "Language: da or en (default locale.default)")
}
