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

// Program to demonstrate how to watch limit switch inputs

package main

import (
	"flag"
	"log"

	"github.com/aamcrae/plotter/io"
)

var gpio = flag.Int("gpio", 17, "GPIO pin for the switch")
var invert = flag.Bool("invert", true, "Switch is active low")

func main() {
	flag.Parse()
	p, err := io.InputPin(*gpio, *invert)
	if err != nil {
		log.Fatalf("Pin %d: %v", *gpio, err)
	}
	defer p.Close()
	log.Printf("pin %d pressed = %v\n", *gpio, p.Read())
	p.OnEdge(func(pressed bool) {
		log.Printf("pin %d pressed = %v\n", *gpio, pressed)
	})
	select {}
}
