package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"igcomments/pkg/auth"
	"igcomments/pkg/checkpoint"
	"igcomments/pkg/config"
	"igcomments/pkg/crawler"
	"igcomments/pkg/instagram"
	"igcomments/pkg/logger"
	"igcomments/pkg/storage"
)

var (
	// Crawl command flags
	dataDir      string
	maxComments  int
	accountName  string
	resumeRun    bool
	noResume     bool
	fetchReplies bool
	noReplies    bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <post-url>",
	Short: "Crawl all comments on an Instagram post",
	Long: `Crawl every comment and reply on a single Instagram post.

The post URL must be a /p/, /reel/ or /tv/ link. The crawler paginates
through all comment pages, fetches nested replies, and writes the full
tree to the data directory as one JSON document.

A checkpoint is saved after every fetched page. If the run is interrupted,
the next run with the same post resumes from the checkpoint. The checkpoint
is deleted only when the crawl reaches the end of the comment list.

Credentials come from stored accounts ('igcomments auth login'), environment
variables, or the configuration file.`,
	Example: `  # Crawl a post
  igcomments crawl https://www.instagram.com/p/ABC123xyz/

  # Limit the number of comments
  igcomments crawl https://www.instagram.com/p/ABC123xyz/ --max-comments 100

  # Start over, ignoring any checkpoint
  igcomments crawl https://www.instagram.com/p/ABC123xyz/ --no-resume

  # Skip reply fetching
  igcomments crawl https://www.instagram.com/p/ABC123xyz/ --no-replies`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "data directory for results and checkpoints")
	crawlCmd.Flags().IntVar(&maxComments, "max-comments", -1, "stop after this many comments (0 = unlimited)")
	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	crawlCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from checkpoint")
	crawlCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore any existing checkpoint")
	crawlCmd.Flags().BoolVar(&fetchReplies, "replies", false, "fetch nested replies")
	crawlCmd.Flags().BoolVar(&noReplies, "no-replies", false, "skip nested replies")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	postURL := strings.TrimSpace(args[0])

	flags := &config.Flags{
		DataDirectory: dataDir,
		LogLevel:      logLevel,
	}
	if cmd.Flags().Changed("max-comments") {
		flags.MaxComments = &maxComments
	}
	if resumeRun {
		t := true
		flags.Resume = &t
	}
	if noResume {
		f := false
		flags.Resume = &f
	}
	if fetchReplies {
		t := true
		flags.FetchReplies = &t
	}
	if noReplies {
		f := false
		flags.FetchReplies = &f
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	mergeStoredCredentials(cfg, log)

	store, err := storage.NewManager(cfg.Output.DataDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	checkpoints, err := checkpoint.NewManager(store.CommentsDir(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize checkpoints: %w", err)
	}
	rawStore := storage.NewRawStore(store.RawDir(), cfg.RawResponses.Mode, cfg.RawResponses.Keep, cfg.RawResponses.MaxBytes)
	client := instagram.NewClient(cfg, rawStore, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := crawler.New(cfg, client, checkpoints, store, log)
	result, err := c.Crawl(ctx, postURL)
	if err != nil {
		return err
	}

	fmt.Printf("Saved %d comments (%d pages, stop: %s)\n", result.CommentCount, result.Pages, result.StopReason)
	fmt.Println(result.OutputPath)
	return nil
}

// mergeStoredCredentials fills missing session cookies from the credential
// manager. A missing or empty credential store is not an error; the config
// may carry the cookies itself.
func mergeStoredCredentials(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential manager unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			log.WithField("account", accountName).Warn("Stored account not found")
			return
		}
	} else {
		account, err = manager.RetrieveDefault()
		if err != nil {
			return
		}
	}

	auth.ApplyToConfig(cfg, account)
	log.WithField("account", account.Username).Debug("Merged stored credentials")
}
