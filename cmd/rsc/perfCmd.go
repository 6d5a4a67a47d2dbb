package rsc

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dRSC/cmd/util"
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf [provider] [service]",
		Short:   "Performance testing tool for RSC devices",
		Long:    "Measures lookups and echo invocations against a device. The echo benchmarks need a service offering the echo method, like every service of the simulator.",
		Args:    cobra.ExactArgs(2),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfEchoMethod       = server.EchoMethod
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. lookup,echo)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines sharing the session"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the arguments for the echo-large test should be (in KB)"))
	key = "echo-method"
	perfTestCmd.Flags().Uint16(key, server.EchoMethod, util.WrapString("Handle of the method returning its arguments"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfEchoMethod = uint16(viper.GetUint("echo-method"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, args []string) error {
	provider, service := args[0], args[1]

	fmt.Println("Performance testing tool for RSC devices")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	benchmarks := []struct {
		name string
		fn   func(b *testing.B)
	}{
		{"lookup", func(b *testing.B) {
			// handles are cached, this measures the session overhead
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := session.ServiceHandle(provider, service); err != nil {
						log.Printf("(lookup) - error resolving service: %v\n", err)
					}
				}
			})
		}},
		{"echo", func(b *testing.B) {
			value := []byte("test")
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := session.Invoke(provider, service, perfEchoMethod, value); err != nil {
						log.Printf("(echo) - error invoking: %v\n", err)
					}
				}
			})
		}},
		{"echo-large", func(b *testing.B) {
			value := make([]byte, perfLargeValueSizeKB*1024)
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := session.Invoke(provider, service, perfEchoMethod, value); err != nil {
						log.Printf("(echo-large) - error invoking: %v\n", err)
					}
				}
			})
		}},
	}

	for _, bm := range benchmarks {
		if shouldSkip(bm.name) {
			results[bm.name] = testing.BenchmarkResult{}
			printResult(bm.name, results[bm.name])
			continue
		}
		results[bm.name] = testing.Benchmark(bm.fn)
		printResult(bm.name, results[bm.name])
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.N == 0 || result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Transport", "TimeoutSec", "DataTagging",
		"Threads", "LargeValueSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.N > 0 && result.NsPerOp() > 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			config.Transport.Name,
			strconv.Itoa(config.TimeoutSecond),
			strconv.FormatBool(config.RequestDataTagging),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
