// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Plotter program

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aamcrae/config"
	"github.com/aamcrae/plotter/plotter"
)

var configFile = flag.String("config", "plotter.conf", "Configuration file")
var port = flag.Int("port", -1, "Web server port number, overriding the config")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	s, err := plotter.Config(conf)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	if *port >= 0 {
		s.Port = *port
	}
	dev, err := plotter.NewDevice(s)
	if err != nil {
		log.Fatalf("Device: %v", err)
	}
	defer dev.Close()
	p := plotter.NewPlotter(dev.Hardware, s)
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if s.Port > 0 {
		go func() {
			log.Fatal(plotter.NewServer(p).ListenAndServe(s.Port))
		}()
	}
	if s.Serial != "" {
		go func() {
			if err := p.ServeSerial(ctx, s.Serial, s.Baud); err != nil && ctx.Err() == nil {
				log.Printf("Serial: %v", err)
			}
		}()
	}
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Plotter: %v", err)
	}
	log.Printf("Plotter stopped")
}
