package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrmrsevennine/clawhire-sub000/internal/daemon"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(ledgerCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show economy counters",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	m := d.Engine.MiningState()
	r := d.Engine.RevenueTotals()
	dm := d.Engine.DeadmanState()

	fmt.Printf("Mining:  %d HIRE mined (epoch %d, rate %d)\n", m.TotalMined, m.CurrentEpoch, m.CurrentRate)
	fmt.Printf("Revenue: %d distributed, %d to treasury, %d burned, %d staked\n",
		r.TotalDistributed, r.TotalToTreasury, r.TotalBurned, r.TotalStaked)
	fmt.Printf("Switch:  last heartbeat %s, triggered=%v, abandoned=%v\n",
		dm.LastHeartbeat.Format("2006-01-02 15:04:05"), dm.Triggered,
		d.Engine.IsAbandoned(time.Now()))
	return nil
}

var taskCmd = &cobra.Command{
	Use:   "task <id>",
	Short: "Show one task in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	t, err := d.DB.GetTask(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Task %s\n", t.ID)
	fmt.Printf("  Status: %s (%s)\n", t.Status, t.Type)
	fmt.Printf("  Poster: %s\n", t.Poster)
	if t.Worker != "" {
		fmt.Printf("  Worker: %s\n", t.Worker)
	}
	fmt.Printf("  Bounty: %d USDC (agreed %d)\n", t.Bounty, t.AgreedPrice)
	if t.Description != "" {
		fmt.Printf("  Description: %s\n", t.Description)
	}
	if t.ParentTaskID != "" {
		fmt.Printf("  Parent: %s\n", t.ParentTaskID)
	}
	for _, child := range t.ChildTaskIDs {
		fmt.Printf("  Subtask: %s\n", child)
	}
	if len(t.Bids) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  BIDDER\tPRICE\tESTIMATE\tACCEPTED")
		for _, b := range t.Bids {
			fmt.Fprintf(w, "  %s\t%d\t%s\t%v\n", b.Bidder, b.Price, b.EstimatedTime, b.Accepted)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

var tasksCmd = &cobra.Command{
	Use:   "tasks [status]",
	Short: "List tasks, optionally filtered by status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	status := domain.TaskStatus("")
	if len(args) == 1 {
		status = domain.TaskStatus(args[0])
	}
	tasks, err := d.DB.ListTasks(status, 100)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tPOSTER\tWORKER\tBOUNTY\tPRICE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			t.ID, t.Status, t.Type, t.Poster, t.Worker, t.Bounty, t.AgreedPrice)
	}
	return w.Flush()
}

var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Show an account's USDC and HIRE balances",
	Args:  cobra.ExactArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	usdc, err := d.DB.AccountBalance(args[0], domain.USDC)
	if err != nil {
		return err
	}
	hire, err := d.DB.AccountBalance(args[0], domain.HIRE)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d USDC, %d HIRE\n", args[0], usdc, hire)
	return nil
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger <account>",
	Short: "Show recent journal entries for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedger,
}

func runLedger(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	entries, err := d.DB.JournalEntries(args[0], 50)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No ledger activity.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tENTRY\tASSET\tAMOUNT\tBALANCE\tMEMO")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.Timestamp.Format("01-02 15:04"), e.Command, e.EntryType,
			e.Asset, e.Amount, e.Balance, e.Memo)
	}
	return w.Flush()
}
