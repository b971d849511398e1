package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/fraud"
)

type predictInput struct {
	typ     string
	amount  float64
	balance float64
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		in        predictInput
		modelPath string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one transaction with the latest model",
		Long: `Scores a transaction given its type, amount and the origin balance before it.
Without flags on an interactive terminal the values are prompted for.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if !flags.Changed("type") && !flags.Changed("amount") && !flags.Changed("balance") && isTerminal(os.Stdin) {
				prompted, err := promptInput(in)
				if err != nil {
					return err
				}
				in = prompted
			}
			if !fraud.ValidType(in.typ) {
				return fmt.Errorf("unknown transaction type %q", in.typ)
			}

			models := fraud.NewModelStore(a.cfg.ModelDir)
			var (
				art *fraud.Artifact
				err error
			)
			if modelPath != "" {
				art, err = models.Load(modelPath)
			} else {
				art, modelPath, err = models.LoadLatest()
			}
			if err != nil {
				return err
			}
			scorer, err := fraud.NewScorer(art, a.logger)
			if err != nil {
				return err
			}
			a.logger.Debug("model loaded", "path", modelPath, "run_id", art.RunID)

			p := scorer.Score(fraud.FromInput(in.typ, in.amount, in.balance))
			printVerdict(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.typ, "type", "t", "CASH_OUT", "Transaction type")
	cmd.Flags().Float64VarP(&in.amount, "amount", "a", 100000, "Transaction amount")
	cmd.Flags().Float64VarP(&in.balance, "balance", "b", 100000, "Origin balance before the transaction")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Model file (default latest in MODEL_DIR)")
	return cmd
}

func promptInput(def predictInput) (predictInput, error) {
	sel := promptui.Select{
		Label: "Transaction type",
		Items: fraud.Categories,
	}
	for i, c := range fraud.Categories {
		if c == def.typ {
			sel.CursorPos = i
		}
	}
	_, typ, err := sel.Run()
	if err != nil {
		return def, err
	}

	amount, err := promptFloat("Amount", def.amount)
	if err != nil {
		return def, err
	}
	balance, err := promptFloat("Old balance (origin)", def.balance)
	if err != nil {
		return def, err
	}
	return predictInput{typ: typ, amount: amount, balance: balance}, nil
}

func promptFloat(label string, def float64) (float64, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.FormatFloat(def, 'f', -1, 64),
		Validate: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return errors.New("enter a number")
			}
			if v < 0 {
				return errors.New("must not be negative")
			}
			return nil
		},
	}
	s, err := p.Run()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func printVerdict(w io.Writer, p fraud.Prediction) {
	c := color.New(color.FgGreen, color.Bold)
	if p.Fraud {
		c = color.New(color.FgRed, color.Bold)
	}
	fmt.Fprintf(w, "Prediction: %s (confidence: %.2f%%)\n", c.Sprint(p.Label), p.Confidence*100)
}
