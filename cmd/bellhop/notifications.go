package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bellhop-dev/bellhop/internal/client/rest"
	"github.com/bellhop-dev/bellhop/internal/storage"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := restClient(cmd)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			unread, _ := cmd.Flags().GetBool("unread")

			page, err := client.List(cmd.Context(), storage.ListOptions{
				Limit:      limit,
				Offset:     offset,
				UnreadOnly: unread,
			})
			if err != nil {
				return fmt.Errorf("failed to list notifications: %w", err)
			}

			if len(page.Data) == 0 {
				fmt.Println("No notifications.")
				return nil
			}
			for _, n := range page.Data {
				printNotification(n)
			}
			fmt.Printf("\nUnread: %d\n", page.TotalUnread)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum notifications to fetch")
	cmd.Flags().Int("offset", 0, "number of notifications to skip")
	cmd.Flags().Bool("unread", false, "only unread notifications")
	return cmd
}

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := restClient(cmd)
			if err != nil {
				return err
			}

			title, _ := cmd.Flags().GetString("title")
			message, _ := cmd.Flags().GetString("message")
			user, _ := cmd.Flags().GetString("user")
			redirect, _ := cmd.Flags().GetString("url")

			created, err := client.Create(cmd.Context(), rest.CreateRequest{
				UserID:      user,
				Title:       title,
				Message:     message,
				RedirectURL: redirect,
			})
			if err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}

			fmt.Printf("Created %s\n", created.ID)
			return nil
		},
	}

	cmd.Flags().String("title", "", "notification title")
	cmd.Flags().String("message", "", "notification body")
	cmd.Flags().String("user", "", "target user (defaults to yourself)")
	cmd.Flags().String("url", "", "redirect URL")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := restClient(cmd)
			if err != nil {
				return err
			}
			if err := client.MarkRead(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to mark read: %w", err)
			}
			fmt.Println("Marked read.")
			return nil
		},
	}
}

func readAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := restClient(cmd)
			if err != nil {
				return err
			}
			if err := client.MarkAllRead(cmd.Context()); err != nil {
				return fmt.Errorf("failed to mark all read: %w", err)
			}
			fmt.Println("All read.")
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := restClient(cmd)
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			fmt.Println("Deleted.")
			return nil
		},
	}
}

func printNotification(n storage.Notification) {
	marker := "*"
	if n.IsRead {
		marker = " "
	}
	fmt.Printf("%s %s  %s\n", marker, n.CreatedAt.Local().Format(time.DateTime), n.Title)
	fmt.Printf("    %s\n", n.Message)
	fmt.Printf("    id: %s\n", n.ID)
}
