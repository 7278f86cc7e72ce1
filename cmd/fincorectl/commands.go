package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fincore/internal/cli"
	"fincore/internal/core"
	"fincore/internal/ledger"
	"fincore/internal/metrics"
	"fincore/internal/services"
)

// withServices opens the store, wires the engine and runs fn.
func (a *app) withServices(ctx context.Context, fn func(ledger.Store, *cli.Services) error) error {
	res, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	svc := cli.NewServices(res.Store, a.cfg, metrics.New(), nil)
	defer svc.Close()
	return fn(res.Store, svc)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAmount reads a non-negative decimal in major units.
func parseAmount(s string) (core.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(s, ",", ".")))
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	m := core.MoneyFromDecimal(d)
	if m.IsNegative() {
		return core.Money{}, fmt.Errorf("%w: %q is negative", core.ErrInvalidAmount, s)
	}
	return m, nil
}

// parsePlan turns ["marketing=60", "reserva=40"] into an ordered plan.
func parsePlan(entries []string) (core.AllocationPlan, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	plan := make(core.AllocationPlan, 0, len(entries))
	for _, e := range entries {
		code, pct, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("%w: expected code=percent, got %q", core.ErrInvalidPlan, e)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("%w: percentage for %q: %v", core.ErrInvalidPlan, code, err)
		}
		plan = append(plan, core.Share{Code: strings.TrimSpace(code), Percent: d})
	}
	return plan, plan.Validate()
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		params                      core.SimulationParams
		revenue, expenses, starting string
		project, account            string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Project the balance month by month",
		Long: `Projects a constant monthly net over a number of months. With --project
or --account the starting balance is the scope's live fund total;
otherwise --starting is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if params.RevenuePerMonth, err = parseAmount(revenue); err != nil {
				return err
			}
			if params.ExpensesPerMonth, err = parseAmount(expenses); err != nil {
				return err
			}
			if params.StartingBalance, err = parseAmount(starting); err != nil {
				return err
			}

			if project == "" && account == "" {
				res, err := core.Simulate(params)
				if err != nil {
					return err
				}
				return a.printJSON(res)
			}
			return a.withServices(cmd.Context(), func(_ ledger.Store, svc *cli.Services) error {
				res, err := svc.Projections.Simulate(cmd.Context(), core.Scope{ProjectID: project, AccountID: account}, params)
				if err != nil {
					return err
				}
				return a.printJSON(res)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&params.Months, "months", 12, "Months to project")
	f.StringVar(&params.Scenario, "scenario", core.ScenarioBaseline, "Scenario label (baseline, optimistic, pessimistic)")
	f.BoolVar(&params.ApplyScenario, "apply-scenario", false, "Scale revenue and expenses by the scenario factors")
	f.StringVar(&revenue, "revenue", "0", "Revenue per month")
	f.StringVar(&expenses, "expenses", "0", "Expenses per month")
	f.StringVar(&starting, "starting", "0", "Starting balance when no scope is given")
	f.StringVar(&project, "project", "", "Start from this project's balance")
	f.StringVar(&account, "account", "", "Start from the balance of every project owned by this account")
	return cmd
}

func newDistributeCmd(a *app) *cobra.Command {
	var (
		planEntries []string
		project     string
	)
	cmd := &cobra.Command{
		Use:   "distribute PAYMENT_ID",
		Short: "Split a payment across funds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := parsePlan(planEntries)
			if err != nil {
				return err
			}
			return a.withServices(cmd.Context(), func(_ ledger.Store, svc *cli.Services) error {
				res, err := svc.Distributor.Distribute(cmd.Context(), services.DistributionRequest{
					PaymentID: args[0],
					Plan:      plan,
					ProjectID: project,
				})
				if err != nil {
					return err
				}
				return a.printJSON(res)
			})
		},
	}
	cmd.Flags().StringSliceVar(&planEntries, "plan", nil, "Explicit allocation as code=percent, in order (e.g. marketing=60,reserva=40)")
	cmd.Flags().StringVar(&project, "project", "", "Project override for the payment")
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	var (
		project, account string
		insights         bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print fund balances and KPIs for a project or account",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := core.Scope{ProjectID: project, AccountID: account}
			return a.withServices(cmd.Context(), func(_ ledger.Store, svc *cli.Services) error {
				if !insights {
					s, err := svc.Summaries.Summarize(cmd.Context(), scope)
					if err != nil {
						return err
					}
					return a.printJSON(s)
				}
				in, s, err := svc.Summaries.Insights(cmd.Context(), scope)
				if err != nil {
					return err
				}
				return a.printJSON(map[string]any{"insights": in, "summary": s})
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project id")
	cmd.Flags().StringVar(&account, "account", "", "Account id; used when --project is empty")
	cmd.Flags().BoolVar(&insights, "insights", false, "Include generated insights")
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare fund balances with their ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd.Context(), func(_ ledger.Store, svc *cli.Services) error {
				report, err := svc.Reconciler.Run(cmd.Context(), repair)
				if err != nil {
					return err
				}
				return a.printJSON(report)
			})
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Reset drifted balances to their ledger sum")
	return cmd
}

type seedResult struct {
	ProjectID  string   `json:"project_id"`
	AccountID  string   `json:"account_id"`
	PaymentIDs []string `json:"payment_ids"`
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		project, account, name, amount, currency string
		payments                                 int
		ruleEntries                              []string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a project with payments and licenses for local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := core.ParseMoney(amount)
			if err != nil {
				return err
			}
			rule, err := parsePlan(ruleEntries)
			if err != nil {
				return err
			}
			if payments < 1 {
				return fmt.Errorf("%w: --payments must be at least 1", core.ErrInvalidInput)
			}
			if project == "" {
				project = uuid.NewString()
			}

			return a.withServices(cmd.Context(), func(store ledger.Store, _ *cli.Services) error {
				ctx := cmd.Context()
				if err := store.CreateProject(ctx, core.Project{ID: project, OwnerID: account, Name: name}); err != nil {
					return err
				}
				if len(rule) > 0 {
					if err := store.SetAllocationRule(ctx, core.AllocationRule{ProjectID: project, Allocation: rule, Active: true}); err != nil {
						return err
					}
				}
				out := seedResult{ProjectID: project, AccountID: account}
				now := time.Now().UTC()
				for i := 0; i < payments; i++ {
					p := core.Payment{
						ID:        uuid.NewString(),
						ProjectID: project,
						Amount:    amt,
						Currency:  core.CurrencyOrDefault(currency),
						CreatedAt: now.Add(time.Duration(i) * time.Second),
					}
					if err := store.CreatePayment(ctx, p); err != nil {
						return err
					}
					if err := store.CreateLicense(ctx, core.License{
						ID: uuid.NewString(), PaymentID: p.ID, ProjectID: project, Status: core.LicenseActive,
					}); err != nil {
						return err
					}
					out.PaymentIDs = append(out.PaymentIDs, p.ID)
				}
				return a.printJSON(out)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&project, "project", "", "Project id (generated when empty)")
	f.StringVar(&account, "account", "local", "Owner account id")
	f.StringVar(&name, "name", "Local project", "Project name")
	f.StringVar(&amount, "amount", "1000.00", "Amount of each payment")
	f.StringVar(&currency, "currency", core.DefaultCurrency, "Payment currency")
	f.IntVar(&payments, "payments", 1, "Number of payments to create")
	f.StringSliceVar(&ruleEntries, "rule", nil, "Active allocation rule as code=percent pairs")
	return cmd
}
