// Package main provides the narrate CLI, a way to synthesize and
// align narrations outside a scene: prime the cache before a long
// render, check bookmark timings, or inspect what the cache holds.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"

	"github.com/scenekit/narration/align"
	"github.com/scenekit/narration/config"
	"github.com/scenekit/narration/speech"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	cacheDir  string
	verbosity string

	rootCmd = &cobra.Command{
		Use:          "narrate",
		Short:        "Synthesize and align scene narrations from the command line",
		SilenceUsage: true,
	}
)

// loadConfig resolves the configuration with the CLI's media dir as
// the placeholder table. Outside a scene there is no render output
// directory, so the user data dir stands in for {media_dir}.
func loadConfig() (*config.Config, error) {
	scope := gap.NewScope(gap.User, "narration")
	mediaDir, err := scope.DataPath("")
	if err != nil {
		mediaDir = "media"
	}
	return config.Load(map[string]any{"media_dir": mediaDir}, func(c *config.Config) {
		if cacheDir != "" {
			c.Cache.Dir = cacheDir
		}
		if verbosity != "" {
			c.Verbosity = verbosity
		}
	})
}

func speechServiceFromFlags(service, voice, language string, speed int, rate float64) (speech.Service, error) {
	switch service {
	case "mock":
		return speech.Mock{}, nil
	case "espeak":
		return speech.ESpeak{Voice: voice, Speed: speed}, nil
	case "google":
		return speech.Google{LanguageCode: language, VoiceName: voice, SpeakingRate: rate}, nil
	default:
		return nil, fmt.Errorf("unknown speech service %q (want mock, espeak or google)", service)
	}
}

func alignServiceFromFlags(service, language string) (align.Service, error) {
	switch service {
	case "interpolation":
		return align.Interpolation{}, nil
	case "manual":
		return align.Manual{}, nil
	case "ctc":
		if language == "" {
			return nil, fmt.Errorf("the ctc aligner needs --language (ISO-639-3)")
		}
		return align.CTC{Language: language}, nil
	default:
		return nil, fmt.Errorf("unknown alignment service %q (want interpolation, manual or ctc)", service)
	}
}

func speakCmd() *cobra.Command {
	var (
		service  string
		voice    string
		language string
		speed    int
		rate     float64
	)
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Synthesize a narration into the cache and print the audio path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := speechServiceFromFlags(service, voice, language, speed, rate)
			if err != nil {
				return err
			}

			synth := speech.NewSynthesizer(svc, cfg.ArtifactCache(), cfg.Cache.AudioFileBaseName)
			path, err := synth.GetSpeech(args[0])
			if err != nil {
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, humanize.IBytes(uint64(info.Size())))
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", "espeak", "speech service: mock, espeak or google")
	cmd.Flags().StringVar(&voice, "voice", "", "voice name for the selected service")
	cmd.Flags().StringVar(&language, "language", "", "language code for the selected service")
	cmd.Flags().IntVar(&speed, "speed", 0, "espeak speed in words per minute")
	cmd.Flags().Float64Var(&rate, "rate", 0, "google speaking rate")
	return cmd
}

func alignCmd() *cobra.Command {
	var (
		service  string
		language string
		audio    string
	)
	cmd := &cobra.Command{
		Use:   "align [text]",
		Short: "Print the bookmark timestamps for a narration text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := alignServiceFromFlags(service, language)
			if err != nil {
				return err
			}

			aligner := align.New(svc, cfg.ArtifactCache(), cfg.Tags.Bookmark)
			timestamps, err := aligner.AlignBookmarks(args[0], audio)
			if err != nil {
				return err
			}

			marks := make([]string, 0, len(timestamps))
			for mark := range timestamps {
				marks = append(marks, mark)
			}
			sort.Slice(marks, func(i, j int) bool {
				return timestamps[marks[i]] < timestamps[marks[j]]
			})
			for _, mark := range marks {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %8.3fs\n", mark, timestamps[mark])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&audio, "audio", "", "path of the synthesized speech (required)")
	cmd.Flags().StringVar(&service, "service", "interpolation", "alignment service: interpolation, manual or ctc")
	cmd.Flags().StringVar(&language, "language", "", "ISO-639-3 language code for the ctc aligner")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func cacheCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the narration cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.Cache.Dir

			if clear {
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("clearing cache: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", dir)
				return nil
			}

			entries := 0
			var total int64
			err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					if path != dir {
						entries++
					}
					return nil
				}
				total += info.Size()
				return nil
			})
			if os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist yet\n", dir)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries, %s\n", dir, entries, humanize.IBytes(uint64(total)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "delete every cached artifact")
	return cmd
}

func main() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "override the narration cache directory")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "", "log level: debug, info, warn or error")
	rootCmd.AddCommand(speakCmd(), alignCmd(), cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
