package main

import (
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ammpool/config"
	"ammpool/native/amm"
	nativecommon "ammpool/native/common"
	"ammpool/observability/logging"
	"ammpool/storage"
)

var configPath = defaultConfigPath()

func defaultConfigPath() string {
	if path := os.Getenv("AMM_CONFIG"); path != "" {
		return path
	}
	return "./pool.toml"
}

func main() {
	args := os.Args[1:]
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.SetupWriter(os.Stderr, "amm-cli", cfg.Environment, logging.ParseLevel(cfg.LogLevel))

	command := args[0]
	switch command {
	case "init":
		runInit(cfg)
	case "status":
		withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
			return printStatus(engine)
		})
	case "swap":
		if len(args) < 4 {
			fmt.Println("Error: Please provide a caller, token, and amount.")
			printUsage()
			return
		}
		runSwap(cfg, args[1], args[2], args[3], args[4:])
	case "provide":
		if len(args) < 4 {
			fmt.Println("Error: Please provide a caller and both amounts.")
			printUsage()
			return
		}
		runProvide(cfg, args[1], args[2], args[3])
	case "burn":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a caller and an LP amount.")
			printUsage()
			return
		}
		runBurn(cfg, args[1], args[2])
	case "collect":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a caller.")
			printUsage()
			return
		}
		runCollect(cfg, args[1])
	case "set-fees":
		if len(args) < 5 {
			fmt.Println("Error: Please provide a caller and three fee rates.")
			printUsage()
			return
		}
		runSetFees(cfg, args[1], args[2:5])
	case "lock":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a caller.")
			printUsage()
			return
		}
		runSetLock(cfg, args[1], true)
	case "unlock":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a caller.")
			printUsage()
			return
		}
		runSetLock(cfg, args[1], false)
	case "fund-gas":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an amount.")
			printUsage()
			return
		}
		runFundGas(cfg, args[1])
	case "reset-gas":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a caller.")
			printUsage()
			return
		}
		runResetGas(cfg, args[1])
	case "export-journal":
		runExportJournal(cfg, args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func applyGlobalFlags(args []string) ([]string, error) {
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a path")
			}
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, nil
}

func printUsage() {
	fmt.Println(`Usage: amm-cli [--config <path>] <command> [arguments]

Commands:
  init                                       Create the pool from the configured pair and fees
  status                                     Print the pool snapshot
  swap <caller> <token> <amount> [minOut]    Sell <amount> of <token> into the pool
  provide <caller> <amount0> <amount1>       Deposit liquidity on both sides
  burn <caller> <lpAmount>                   Withdraw the pro-rata share for burned LP
  collect <caller>                           Settle fee accumulators past the threshold
  set-fees <caller> <lp> <protocol> <ref>    Replace the fee schedule (basis points)
  lock <caller>                              Halt mutating operations
  unlock <caller>                            Resume mutating operations
  fund-gas <amount>                          Credit the tracked operating balance
  reset-gas <caller>                         Sweep the operating balance above the floor
  export-journal [start] [end]               Export the operation journal as base64 CSV`)
}

// withEngine opens the configured database, loads the stored pool, and hands a
// wired engine to fn. The database closes when fn returns.
func withEngine(cfg *config.Config, fn func(*amm.Engine, *amm.Ledger) error) {
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "pool"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := amm.NewLedger(storage.NewKVStore(db))
	pool, ok, err := ledger.LoadPool()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load pool: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: no pool found; run 'amm-cli init' first.")
		os.Exit(1)
	}

	engine := amm.NewEngine(pool)
	engine.SetLedger(ledger)
	engine.SetMinSwapAmount(big.NewInt(cfg.Pool.MinSwapAmount))
	engine.SetQuota(nativecommon.Quota{
		MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
		MaxUnitsPerEpoch:    cfg.Quota.MaxUnitsPerEpoch,
		EpochSeconds:        cfg.Quota.EpochSeconds,
	})
	if cfg.Pool.MinOperatingReserve > 0 {
		engine.SetGasView(ledger.GasView(), big.NewInt(cfg.Pool.MinOperatingReserve))
	}
	serveMetrics(cfg.MetricsAddress)

	if err := fn(engine, ledger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serveMetrics exposes the process's prometheus registry while a command
// runs. Scrapers mostly matter for long-lived dispatch deployments; for the
// CLI the endpoint is best effort.
func serveMetrics(address string) {
	if strings.TrimSpace(address) == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(address, mux); err != nil {
			slog.Debug("metrics endpoint unavailable", "address", address, "error", err)
		}
	}()
}

func runInit(cfg *config.Config) {
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "pool"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := amm.NewLedger(storage.NewKVStore(db))
	if _, ok, err := ledger.LoadPool(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to inspect database: %v\n", err)
		os.Exit(1)
	} else if ok {
		fmt.Fprintln(os.Stderr, "Error: pool already initialised.")
		os.Exit(1)
	}

	fees, admins, err := scheduleFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	pool := amm.NewPool(cfg.Pool.Token0, cfg.Pool.Token1, fees, admins...)
	if err := ledger.SavePool(pool); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to persist pool: %v\n", err)
		os.Exit(1)
	}
	slog.Info("pool initialised", "token0", pool.Token0, "token1", pool.Token1)
	fmt.Printf("Initialised %s/%s pool in %s\n", pool.Token0, pool.Token1, cfg.DataDir)
}

func printStatus(engine *amm.Engine) error {
	snapshot, err := engine.PoolData()
	if err != nil {
		return err
	}
	fmt.Printf("Pair:            %s / %s\n", snapshot.Token0, snapshot.Token1)
	fmt.Printf("Reserves:        %s / %s\n", snapshot.Reserve0, snapshot.Reserve1)
	fmt.Printf("LP supply:       %s\n", snapshot.TotalSupplyLP)
	fmt.Printf("Provider fees:   %s / %s\n", snapshot.CollectedProviderFee0, snapshot.CollectedProviderFee1)
	fmt.Printf("Protocol fees:   %s / %s\n", snapshot.CollectedProtocolFee0, snapshot.CollectedProtocolFee1)
	fmt.Printf("Fee schedule:    lp=%dbps protocol=%dbps ref=%dbps\n",
		snapshot.LPFeeBps, snapshot.ProtocolFeeBps, snapshot.RefFeeBps)
	fmt.Printf("Locked:          %t\n", snapshot.Locked)
	return nil
}

func runSwap(cfg *config.Config, callerArg, token, amountArg string, rest []string) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	amount, err := parseAmount(amountArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	req := amm.SwapRequest{From: caller, TokenIn: token, AmountIn: amount}
	if len(rest) > 0 {
		minOut, err := parseAmount(rest[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		req.MinOut = minOut
	}

	withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
		instructions, err := engine.Swap(caller, req)
		if err != nil {
			return err
		}
		printInstructions(instructions)
		return nil
	})
}

func runProvide(cfg *config.Config, callerArg, amount0Arg, amount1Arg string) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	amount0, err := parseAmount(amount0Arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	amount1, err := parseAmount(amount1Arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
		instructions, err := engine.ProvideLiquidity(caller, amm.ProvideLiquidityRequest{
			From: caller, Amount0: amount0, Amount1: amount1,
		})
		if err != nil {
			return err
		}
		printInstructions(instructions)
		return nil
	})
}

func runBurn(cfg *config.Config, callerArg, lpArg string) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	lpAmount, err := parseAmount(lpArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
		instructions, err := engine.Burn(caller, amm.BurnRequest{From: caller, LPAmount: lpAmount})
		if err != nil {
			return err
		}
		printInstructions(instructions)
		return nil
	})
}

func runCollect(cfg *config.Config, callerArg string) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
		instructions, err := engine.CollectFees(caller)
		if err != nil {
			return err
		}
		if len(instructions) == 0 {
			fmt.Println("Nothing to collect: no accumulator has reached the threshold.")
			return nil
		}
		printInstructions(instructions)
		return nil
	})
}

func runSetFees(cfg *config.Config, callerArg string, rateArgs []string) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	rates := make([]uint16, 3)
	for i, raw := range rateArgs {
		value, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid fee rate %q\n", raw)
			os.Exit(1)
		}
		rates[i] = uint16(value)
	}
	fees, _, err := scheduleFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
		err := engine.SetFees(caller, amm.SetFeesRequest{
			LPFeeBps:           rates[0],
			ProtocolFeeBps:     rates[1],
			RefFeeBps:          rates[2],
			ProviderFeeAddress: fees.ProviderFeeAddress,
			ProtocolFeeAddress: fees.ProtocolFeeAddress,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Fee schedule updated: lp=%d protocol=%d ref=%d\n", rates[0], rates[1], rates[2])
		return nil
	})
}

func runSetLock(cfg *config.Config, callerArg string, locked bool) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(engine *amm.Engine, _ *amm.Ledger) error {
		if err := engine.SetLockStatus(caller, locked); err != nil {
			return err
		}
		if locked {
			fmt.Println("Pool locked.")
		} else {
			fmt.Println("Pool unlocked.")
		}
		return nil
	})
}

func runResetGas(cfg *config.Config, callerArg string) {
	caller, err := config.ParseAddress(callerArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(engine *amm.Engine, ledger *amm.Ledger) error {
		instructions, err := engine.ResetGas(caller)
		if err != nil {
			return err
		}
		if len(instructions) == 0 {
			fmt.Println("Nothing to sweep: operating balance is at or below the floor.")
			return nil
		}
		// The CLI doubles as the dispatch layer here: the sweep leaves the
		// balance at the configured floor.
		if err := ledger.SetGasBalance(big.NewInt(cfg.Pool.MinOperatingReserve)); err != nil {
			return err
		}
		printInstructions(instructions)
		return nil
	})
}

func runFundGas(cfg *config.Config, amountArg string) {
	amount, err := parseAmount(amountArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	withEngine(cfg, func(_ *amm.Engine, ledger *amm.Ledger) error {
		balance, err := ledger.GasBalance()
		if err != nil {
			return err
		}
		balance.Add(balance, amount)
		if err := ledger.SetGasBalance(balance); err != nil {
			return err
		}
		fmt.Printf("Operating balance is now %s.\n", balance)
		return nil
	})
}

func runExportJournal(cfg *config.Config, args []string) {
	var startTs, endTs int64
	var err error
	if len(args) > 0 {
		if startTs, err = strconv.ParseInt(args[0], 10, 64); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid start timestamp %q\n", args[0])
			os.Exit(1)
		}
	}
	if len(args) > 1 {
		if endTs, err = strconv.ParseInt(args[1], 10, 64); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid end timestamp %q\n", args[1])
			os.Exit(1)
		}
	}

	withEngine(cfg, func(_ *amm.Engine, ledger *amm.Ledger) error {
		encoded, count, err := ledger.ExportCSV(startTs, endTs)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d journal entries.\n", count)
		fmt.Println(encoded)
		return nil
	})
}

func printInstructions(instructions []amm.Instruction) {
	if len(instructions) == 0 {
		fmt.Println("No outbound instructions.")
		return
	}
	for _, ins := range instructions {
		fmt.Printf("%-11s token=%s to=0x%x amount=%s  %s\n",
			ins.Kind, ins.Token, ins.To, ins.Amount, ins.Memo)
	}
}

// scheduleFromConfig builds the fee schedule and admin set from the config
// file. Used when the pool is created and when rates change.
func scheduleFromConfig(cfg *config.Config) (amm.FeeSchedule, [][20]byte, error) {
	provider, err := config.ParseAddress(cfg.Pool.ProviderFeeAddress)
	if err != nil {
		return amm.FeeSchedule{}, nil, err
	}
	protocol, err := config.ParseAddress(cfg.Pool.ProtocolFeeAddress)
	if err != nil {
		return amm.FeeSchedule{}, nil, err
	}
	fees := amm.FeeSchedule{
		LPFeeBps:           cfg.Pool.LPFeeBps,
		ProtocolFeeBps:     cfg.Pool.ProtocolFeeBps,
		RefFeeBps:          cfg.Pool.RefFeeBps,
		ProviderFeeAddress: provider,
		ProtocolFeeAddress: protocol,
	}
	if err := fees.Validate(); err != nil {
		return amm.FeeSchedule{}, nil, err
	}

	admins := make([][20]byte, 0, len(cfg.Pool.Admins))
	for _, raw := range cfg.Pool.Admins {
		admin, err := config.ParseAddress(raw)
		if err != nil {
			return amm.FeeSchedule{}, nil, err
		}
		admins = append(admins, admin)
	}
	return fees, admins, nil
}

func parseAmount(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
