package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/trailstop"
	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// Command line flags
var (
	configFile string
	profile    string
	testOnly   bool
)

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start a trailing stop loss run",
		RunE:  runEngine,
	}

	flags := runCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path (e.g. ./trailstop.yaml)")
	flags.StringVarP(&profile, "profile", "p", "", "Configuration profile to load from the config file")
	flags.BoolVarP(&testOnly, "test", "t", false, "Send a test notification to every configured channel and exit")

	flags.String("exchange", core.ExchangeBinanceSpot, "Exchange endpoint (binance.com, binance.com-margin, binance.com-isolated_margin)")
	flags.String("symbol", "", "Market symbol (e.g. BTCUSDT)")
	flags.String("orderside", "SELL", "Side of the protective order (SELL or BUY)")
	flags.String("engine", string(core.EngineModeTrail), "Engine mode (trail or jump-in-and-trail)")
	flags.String("apikey", "", "Exchange API key")
	flags.String("apisecret", "", "Exchange API secret")
	flags.Bool("testnet", false, "Use the exchange testnet")

	flags.String("limit", "", "Stop loss limit, percent (e.g. 2%) or absolute (e.g. 150.0)")
	flags.String("startlimit", "", "Entry stop loss limit for jump-in-and-trail, falls back to --limit")
	flags.String("triggergap", "0.01", "Gap between the stop price and the trigger price")
	flags.String("keepthreshold", "", "Balance portion to keep, percent or absolute (default sells the full free balance minus fee)")
	flags.Float64("stoplossprice", 0, "Starting stop loss price (default derives it from open orders or the feed)")
	flags.Bool("resetstoplossprice", false, "Ignore pre-existing open stop loss orders on start")
	flags.String("retryinterval", "", "Backoff between order submission retries (e.g. 5s, 1m)")
	flags.Int("precision-crypto", 2, "Decimal places for quantities and crypto-quoted prices")
	flags.Int("precision-fiat", 2, "Decimal places for stablecoin-quoted prices")

	flags.String("database", "", "Order journal file path (default trailstop.db)")
	flags.String("database-driver", "buntdb", "Order journal driver (buntdb or sqlite)")

	return runCmd
}

func runEngine(cmd *cobra.Command, args []string) error {
	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	settings, err := buildSettings(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options, err := buildStorageOptions(v)
	if err != nil {
		return err
	}

	bot, err := trailstop.NewBot(ctx, settings, options...)
	if err != nil {
		return err
	}

	if testOnly {
		bot.TestNotifications()
		return nil
	}

	if err := bot.Run(ctx); err != nil {
		return err
	}

	printSummary(bot, settings)
	return nil
}

// loadConfig merges the configuration file, the selected profile, and the
// command line flags. Flags that were set explicitly win over the file.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %q: %w", configFile, err)
		}

		if profile != "" {
			sub := v.Sub(profile)
			if sub == nil {
				return nil, fmt.Errorf("profile %q not found in %q", profile, configFile)
			}
			v = sub
		}
	} else if profile != "" {
		return nil, fmt.Errorf("--profile requires --config")
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	return v, nil
}

func buildSettings(v *viper.Viper) (*core.Settings, error) {
	settings := &core.Settings{
		Exchange:  v.GetString("exchange"),
		Market:    v.GetString("symbol"),
		Side:      core.SideType(v.GetString("orderside")),
		Engine:    core.EngineMode(v.GetString("engine")),
		APIKey:    v.GetString("apikey"),
		APISecret: v.GetString("apisecret"),
		Testnet:   v.GetBool("testnet"),

		StopLossPrice:      v.GetFloat64("stoplossprice"),
		ResetStopLossPrice: v.GetBool("resetstoplossprice"),

		PrecisionCrypto: v.GetInt("precision-crypto"),
		PrecisionFiat:   v.GetInt("precision-fiat"),

		Fees: core.DefaultFeeSettings(),
	}

	var err error
	if settings.StopLossLimit, err = core.ParseOffset(v.GetString("limit")); err != nil {
		return nil, fmt.Errorf("invalid --limit: %w", err)
	}

	if raw := v.GetString("startlimit"); raw != "" {
		if settings.StartLimit, err = core.ParseOffset(raw); err != nil {
			return nil, fmt.Errorf("invalid --startlimit: %w", err)
		}
	}

	if settings.TriggerGap, err = core.ParseOffset(v.GetString("triggergap")); err != nil {
		return nil, fmt.Errorf("invalid --triggergap: %w", err)
	}

	if raw := v.GetString("keepthreshold"); raw != "" {
		keep, err := core.ParseOffset(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --keepthreshold: %w", err)
		}
		settings.KeepThreshold = &keep
	}

	if raw := v.GetString("retryinterval"); raw != "" {
		if settings.RetryInterval, err = str2duration.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid --retryinterval: %w", err)
		}
	}

	settings.Telegram = core.TelegramSettings{
		Enabled: v.GetBool("telegram.enabled"),
		Token:   v.GetString("telegram.token"),
		ChatID:  v.GetInt64("telegram.chat_id"),
	}

	settings.Email = core.EmailSettings{
		Enabled:  v.GetBool("email.enabled"),
		To:       v.GetString("email.to"),
		From:     v.GetString("email.from"),
		Password: v.GetString("email.password"),
		Server:   v.GetString("email.server"),
		Port:     v.GetInt("email.port"),
	}

	if v.IsSet("fees.trading_fee_percent") {
		settings.Fees.TradingFeePercent = v.GetFloat64("fees.trading_fee_percent")
	}
	if v.IsSet("fees.use_bnb") {
		settings.Fees.UseBNB = v.GetBool("fees.use_bnb")
	}

	return settings, settings.Validate()
}

func buildStorageOptions(v *viper.Viper) ([]trailstop.Option, error) {
	database := v.GetString("database")
	if database == "" {
		return nil, nil
	}

	switch driver := v.GetString("database-driver"); driver {
	case "buntdb":
		journal, err := storage.NewFromFile(database)
		if err != nil {
			return nil, err
		}
		return []trailstop.Option{trailstop.WithStorage(journal)}, nil

	case "sqlite":
		journal, err := storage.NewFromSQLite(database, storage.DefaultSQLConfig())
		if err != nil {
			return nil, err
		}
		return []trailstop.Option{trailstop.WithStorage(journal)}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// printSummary displays the outcome of the run in stdout
func printSummary(bot *trailstop.Bot, settings *core.Settings) {
	engine := bot.Engine()

	stop, held := engine.StopPrice()
	stopCell := "-"
	if held {
		stopCell = strconv.FormatFloat(stop, 'f', -1, 64)
	}

	entry := engine.EntryPrice()
	entryCell := "-"
	changeCell := "-"
	if entry > 0 {
		entryCell = strconv.FormatFloat(entry, 'f', -1, 64)
		if held {
			changeCell = fmt.Sprintf("%.2f %%", (stop-entry)/entry*100)
		}
	}

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Market", "Engine", "Entry", "Stop Loss", "Change"})
	table.Append([]string{
		settings.Market,
		string(settings.Engine),
		entryCell,
		stopCell,
		changeCell,
	})
	table.Render()

	fmt.Fprintln(os.Stdout, buffer.String())
}
