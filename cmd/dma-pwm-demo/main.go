// dma-pwm-demo drives one GPIO pin through two PWM waveforms, mirroring
// the reference library's own smoke test: 1Hz at 75% duty, then a live
// update to 5Hz at 50% duty, then a clean shutdown.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/besp9510/dma-pwm/engine"
)

func mainImpl() error {
	verbose := flag.Bool("v", false, "verbose mode")
	gpioPin := flag.Int("gpio", 26, "GPIO pin to drive")
	pages := flag.Int("pages", 16, "pages per CB buffer")
	pulseWidthUS := flag.Float64("pulse-width-us", 5000, "engine pulse width quantum, in microseconds")
	hold := flag.Duration("hold", 5*time.Second, "how long to hold each waveform")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	defer logger.Sync()

	e, err := engine.New(engine.NewConfig(*pages, *pulseWidthUS), logger)
	if err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}
	logger.Info("engine configured")

	ch, err := e.RequestChannel()
	if err != nil {
		return fmt.Errorf("request channel: %w", err)
	}
	defer e.FreePWM(ch)
	logger.Info("channel requested", zap.Int("channel", ch))

	gpios := []int{*gpioPin}
	if err := e.SetPWM(ch, gpios, 1, 75); err != nil {
		return fmt.Errorf("set pwm: %w", err)
	}
	freq, _ := e.AchievedFrequency(ch)
	duty, _ := e.AchievedDuty(ch)
	fmt.Printf("PWM signal frequency:  %0.3f Hz\n", freq)
	fmt.Printf("PWM signal duty cycle: %0.3f%%\n", duty)

	if err := e.EnablePWM(ch); err != nil {
		return fmt.Errorf("enable pwm: %w", err)
	}
	fmt.Printf("channel %d enabled\n", ch)
	time.Sleep(*hold)

	if err := e.SetPWM(ch, gpios, 5, 50); err != nil {
		return fmt.Errorf("update pwm: %w", err)
	}
	freq, _ = e.AchievedFrequency(ch)
	duty, _ = e.AchievedDuty(ch)
	fmt.Printf("PWM signal frequency:  %0.3f Hz\n", freq)
	fmt.Printf("PWM signal duty cycle: %0.3f%%\n", duty)
	time.Sleep(*hold)

	if err := e.DisablePWM(ch); err != nil {
		return fmt.Errorf("disable pwm: %w", err)
	}
	fmt.Printf("channel %d disabled\n", ch)
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "dma-pwm-demo: %s.\n", err)
		os.Exit(1)
	}
}
