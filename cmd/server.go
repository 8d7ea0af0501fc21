/*
Copyright © 2022 Carsafe Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	devConfig "github.com/carsafe/carsafe/dev/config"
	"github.com/carsafe/carsafe/server"
	"github.com/carsafe/carsafe/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverConfigFile string

func createServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start a carsafe server",
		Long: `The carsafe server stores emergency profiles behind owner accounts,
resolves public QR ids & records incident reports against them`,
		Run: func(cmd *cobra.Command, args []string) {
			server.Start(serverConfig(), isDevEnv)
		},
	}

	// TODO: Make this required, when not in dev mode
	cmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")

	return cmd
}

func serverConfig() *viper.Viper {
	config := viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	config.SetConfigFile(serverConfigFile)
	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return config
}

// devConfigFilePath returns 'dev/config/server.yml' under the working
// directory, creating it with the default dev config on first run.
func devConfigFilePath() string {
	workingDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(workingDir, "dev", "config", "server.yml")
	if !utils.FileExist(configFilePath) {
		if err := utils.CreateDirIfNotExist(filepath.Join(workingDir, "dev")); err != nil {
			log.Panic(err)
		}
		if err := utils.CreateDirIfNotExist(filepath.Join(workingDir, "dev", "config")); err != nil {
			log.Panic(err)
		}
		if err := ioutil.WriteFile(configFilePath, []byte(devConfig.SERVER_YML), 0600); err != nil {
			log.Panic(err)
		}
	}

	return configFilePath
}
