package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gigconnect/gigconnect/internal/models"
)

// newSeedCommand creates a demo seller, buyer and gig, opens a ticket between
// them and prints bearer tokens for both.
func newSeedCommand() *cobra.Command {
	var (
		title string
		price float64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo users, a gig and a ticket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			seller := &models.User{ID: uuid.NewString(), Name: "Demo Seller", Email: "seller@example.com"}
			buyer := &models.User{ID: uuid.NewString(), Name: "Demo Buyer", Email: "buyer@example.com"}
			for _, u := range []*models.User{seller, buyer} {
				if err := a.users.CreateUser(ctx, u); err != nil {
					return err
				}
			}
			gig := &models.Gig{ID: uuid.NewString(), Title: title, Price: price, SellerID: seller.ID}
			if err := a.users.CreateGig(ctx, gig); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.mongo != nil {
				t, err := a.tickets.Open(ctx, gig.ID, seller.ID, buyer.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "ticket: %s\n", t.ID)
			} else {
				fmt.Fprintln(out, "mongo.uri is empty, no ticket was opened")
			}

			for _, u := range []*models.User{seller, buyer} {
				token, err := a.jwt.GenerateToken(u.ID, u.Name, u.Email)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%s): %s\n", u.Name, u.ID, token)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "Logo design", "title of the demo gig")
	cmd.Flags().Float64Var(&price, "price", 500, "listed price of the demo gig")
	return cmd
}
