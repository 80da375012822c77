package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the default output device and audio-capable processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := coreaudio.NewHost()
			if err != nil {
				return err
			}

			device, err := coreaudio.ReadDefaultOutputDevice(host, coreaudio.SystemObjectID)
			if err != nil {
				return err
			}
			fmt.Printf("default output device: %d\n", device)

			if uid, err := coreaudio.ReadDeviceUID(host, device); err == nil {
				fmt.Printf("device uid: %s\n", uid)
			}

			processes, err := coreaudio.ReadProcessList(host, coreaudio.SystemObjectID)
			if err != nil {
				return err
			}
			fmt.Printf("audio process objects: %d\n", len(processes))
			for _, p := range processes {
				fmt.Printf("  %d\n", p)
			}
			return nil
		},
	}
}
