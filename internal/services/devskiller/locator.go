package devskiller

import (
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/browser"
	"github.com/g2i/hub/internal/interfaces"
)

// Strategy is one ranked way of locating a page element. The login flow has
// no stable contract with the third-party UI, so every element is looked up
// through an ordered list of strategies tried in sequence - first match wins.
type Strategy struct {
	Name     string
	Selector string
	By       chromedp.QueryOption
}

// strategyTimeout bounds each individual strategy probe.
const strategyTimeout = 5 * time.Second

func emailFieldStrategies() []Strategy {
	return []Strategy{
		{Name: "label", Selector: `//input[@id = //label[contains(., "E-mail")]/@for]`, By: chromedp.BySearch},
		{Name: "type", Selector: `input[type="email"]`, By: chromedp.ByQuery},
		{Name: "placeholder", Selector: `input[placeholder="E-mail" i]`, By: chromedp.ByQuery},
		{Name: "role", Selector: `input`, By: chromedp.ByQuery},
	}
}

func passwordFieldStrategies() []Strategy {
	return []Strategy{
		{Name: "label", Selector: `//input[@id = //label[contains(., "Password")]/@for]`, By: chromedp.BySearch},
		{Name: "type", Selector: `input[type="password"]`, By: chromedp.ByQuery},
		{Name: "placeholder", Selector: `input[placeholder="Password" i]`, By: chromedp.ByQuery},
		{Name: "role", Selector: `input`, By: chromedp.ByQuery},
	}
}

func nextButtonStrategies() []Strategy {
	return []Strategy{
		{Name: "text", Selector: `//button[contains(normalize-space(.), "Next")]`, By: chromedp.BySearch},
		{Name: "submit", Selector: `button[type="submit"]`, By: chromedp.ByQuery},
		{Name: "generic", Selector: `button`, By: chromedp.ByQuery},
	}
}

func loginButtonStrategies() []Strategy {
	return []Strategy{
		{Name: "text", Selector: `//button[contains(normalize-space(.), "Log in")]`, By: chromedp.BySearch},
		{Name: "submit", Selector: `button[type="submit"]`, By: chromedp.ByQuery},
		{Name: "generic", Selector: `button`, By: chromedp.ByQuery},
	}
}

func goBackButtonStrategies() []Strategy {
	return []Strategy{
		{Name: "text", Selector: `//button[contains(normalize-space(.), "Go back")]`, By: chromedp.BySearch},
		{Name: "generic", Selector: `button`, By: chromedp.ByQuery},
	}
}

// prober attempts one strategy and reports whether its element is present.
// The session-backed implementation waits for visibility; tests substitute
// their own.
type prober func(st Strategy) error

// sessionProber probes a strategy against a live browser session
func sessionProber(sess *browser.Session) prober {
	return func(st Strategy) error {
		return sess.RunWithTimeout(strategyTimeout, chromedp.WaitVisible(st.Selector, st.By))
	}
}

// locate tries each strategy in order, returning the first that matched.
// Exhausting the list is fatal; the error names every strategy tried so
// third-party UI drift can be diagnosed from logs alone.
func locate(probe prober, element string, strategies []Strategy, logger arbor.ILogger) (Strategy, error) {
	tried := make([]string, 0, len(strategies))

	for _, st := range strategies {
		if err := probe(st); err != nil {
			logger.Debug().
				Str("element", element).
				Str("strategy", st.Name).
				Err(err).
				Msg("Locator strategy failed")
			tried = append(tried, st.Name)
			continue
		}
		logger.Debug().
			Str("element", element).
			Str("strategy", st.Name).
			Msg("Element located")
		return st, nil
	}

	return Strategy{}, fmt.Errorf("%s not found after strategies [%s]: %w",
		element, strings.Join(tried, ", "), interfaces.ErrElementNotFound)
}
