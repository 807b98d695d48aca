package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"wechat/internal/config"
	"wechat/internal/constants"
	"wechat/internal/service"

	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var contact string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, contact, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&contact, "to", "", "Open the conversation with this contact on start")
	return cmd
}

func runChat(ctx context.Context, opts *rootOptions, contact string, in io.Reader, out, errOut io.Writer) error {
	cfg, logger, err := opts.loadConfig(errOut)
	if err != nil {
		return err
	}
	ctx = service.WithVerbose(ctx, opts.verbose)

	con := newConsole(out, cfg.Session.UserID)
	a, err := newApp(ctx, cfg, logger, con)
	if err != nil {
		return err
	}
	defer a.close()

	// Cancelled before the session closes so shutdown is not reported as a drop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.WithField("version", Version).Info("Starting wechat")

	// History failures are reported and the session starts with an empty store
	if n, err := a.session.LoadHistory(ctx); err == nil {
		con.Printf("Loaded %d messages\n", n)
	}
	a.store.Subscribe(con.Message)

	if err := a.session.Start(ctx); err != nil {
		return err
	}

	go a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	go func() {
		select {
		case <-a.session.Disconnected():
			if ctx.Err() == nil {
				con.Printf("! Disconnected from chat server\n")
			}
		case <-ctx.Done():
		}
	}()

	if opts.statusAddr != "" {
		server := NewServer(a.session, a.flagLog(), a.moderationInfo(), logger)
		go func() {
			if err := server.Start(opts.statusAddr); err != nil {
				logger.WithError(err).Error("Status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("Failed to shutdown status server")
			}
		}()
	}

	r := newREPL(a.session, con, in)
	con.Printf("Connected as %s. /help lists commands\n", cfg.Session.UserID)
	if contact != "" {
		r.openConversation(contact)
	}
	return r.run(ctx)
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [contact]",
		Short: "Print the chat history, optionally for one contact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			con := newConsole(cmd.OutOrStdout(), cfg.Session.UserID)
			a, err := newApp(cmd.Context(), cfg, logger, con)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.session.LoadHistory(cmd.Context()); err != nil {
				return err
			}

			contacts := a.session.Conversations()
			if len(args) == 1 {
				contacts = []string{args[0]}
			}
			for _, id := range contacts {
				con.Printf("== %s\n", id)
				for _, msg := range a.session.Messages(id) {
					con.Printf("%s\n", formatMessage(cfg.Session.UserID, id, msg))
				}
			}
			return nil
		},
	}
}

func newContactsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the users you can chat with",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			con := newConsole(cmd.OutOrStdout(), cfg.Session.UserID)
			a, err := newApp(cmd.Context(), cfg, logger, con)
			if err != nil {
				return err
			}
			defer a.close()

			contacts, err := a.session.Contacts(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range contacts {
				line := fmt.Sprintf("%s\t%s", c.ID, c.DisplayName())
				if avatar := config.AssetURL(cfg, c.Avatar); avatar != "" {
					line += "\t" + avatar
				}
				con.Printf("%s\n", line)
			}
			return nil
		},
	}
}
