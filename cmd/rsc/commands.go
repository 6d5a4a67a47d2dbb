package rsc

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Connects and prints the negotiated capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := session.Capabilities()
			fmt.Printf("remoting version: %d\n", caps.RemotingVersion)
			fmt.Printf("data tagging:     %v\n", caps.HasDataTagging)
			fmt.Printf("datagramming:     %v\n", caps.HasDatagramming)
			return nil
		},
	}
	providerCmd = &cobra.Command{
		Use:   "provider [name]",
		Short: "Resolves the handle of a service provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := session.ProviderHandle(args[0])
			if err != nil {
				return err
			}
			fmt.Println(handle)
			return nil
		},
	}
	serviceCmd = &cobra.Command{
		Use:   "service [provider] [service...]",
		Short: "Resolves the handle of the first service the provider offers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := session.ServiceHandle(args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Println(handle)
			return nil
		},
	}
	invokeCmd = &cobra.Command{
		Use:   "invoke [provider] [service] [method] [args]",
		Short: "Invokes a method with hex encoded arguments and prints the hex encoded result",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := strconv.ParseUint(args[2], 10, 16)
			if err != nil {
				return fmt.Errorf("method must be a number: %w", err)
			}

			var data []byte
			if len(args) == 4 {
				if data, err = hex.DecodeString(args[3]); err != nil {
					return fmt.Errorf("args must be hex encoded: %w", err)
				}
			}

			result, err := session.Invoke(args[0], args[1], uint16(method), data)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(result))
			return nil
		},
	}
)
