package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"khabiteq-backend/model"
	"khabiteq-backend/usecase"
)

func newMessageCmd(a *app) *cobra.Command {
	var status, pending, role string

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Print the status message a viewer sees for a negotiation state",
		RunE: func(cmd *cobra.Command, args []string) error {
			party := model.Party(pending)
			if !party.Valid() {
				return fmt.Errorf("pending must be buyer, seller or none, got %q", pending)
			}
			viewer := model.Role(role)
			if !viewer.Valid() {
				return fmt.Errorf("role must be buyer or seller, got %q", role)
			}
			msg := usecase.StatusMessage(model.NegotiationStatus(status), party, viewer)
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "negotiation status, e.g. negotiation_countered")
	cmd.Flags().StringVar(&pending, "pending", string(model.PartyNone), "party the negotiation waits on")
	cmd.Flags().StringVar(&role, "role", string(model.RoleBuyer), "viewer role")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
