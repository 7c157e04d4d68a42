package handlers

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const legalStyle = `<style>body{font-family:-apple-system,BlinkMacSystemFont,sans-serif;max-width:800px;margin:0 auto;padding:20px;color:#333}h1{color:#1a1a1a}h2{color:#444;margin-top:30px}</style>`

// publicPages are listed in the sitemap.
var publicPages = []string{"/", "/pricing", "/login", "/signup", "/api/legal/privacy", "/api/legal/terms"}

type LegalHandler struct {
	appName string
	baseURL string
}

func NewLegalHandler(appName, baseURL string) *LegalHandler {
	return &LegalHandler{appName: appName, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *LegalHandler) PrivacyPolicy(c *fiber.Ctx) error {
	return c.Type("html").SendString(`<!DOCTYPE html>
<html><head><title>Privacy Policy - ` + h.appName + `</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
` + legalStyle + `
</head><body>
<h1>Privacy Policy</h1>
<p>Last updated: October 2026</p>
<h2>Information We Collect</h2>
<p>We collect your email address and the vehicle, date and odometer details you enter to generate mileage logs.</p>
<h2>Payments</h2>
<p>Payments are processed by Stripe. We never see or store your card details; we keep only your subscription status and billing period.</p>
<h2>How We Use Your Information</h2>
<p>Your data is used solely to operate ` + h.appName + `, authenticate your account, and produce the logs you request.</p>
<h2>Account Deletion</h2>
<p>You can delete your account at any time. Deleting it removes your mileage logs and subscription history.</p>
<h2>Contact</h2>
<p>For questions about this policy, contact us at ` + h.supportEmail() + `</p>
</body></html>`)
}

func (h *LegalHandler) TermsOfService(c *fiber.Ctx) error {
	return c.Type("html").SendString(`<!DOCTYPE html>
<html><head><title>Terms of Service - ` + h.appName + `</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
` + legalStyle + `
</head><body>
<h1>Terms of Service</h1>
<p>Last updated: October 2026</p>
<h2>Acceptance</h2>
<p>By using ` + h.appName + `, you agree to these terms.</p>
<h2>Your Records</h2>
<p>Generated logs are based entirely on the figures you provide. You are responsible for their accuracy in any tax or reimbursement filing.</p>
<h2>Subscriptions</h2>
<p>Log generation requires an active subscription billed through Stripe. Subscriptions renew automatically until cancelled.</p>
<h2>Termination</h2>
<p>We may suspend or terminate accounts that violate these terms.</p>
<h2>Contact</h2>
<p>For questions, contact us at ` + h.supportEmail() + `</p>
</body></html>`)
}

func (h *LegalHandler) Robots(c *fiber.Ctx) error {
	return c.Type("txt").SendString("User-agent: *\nAllow: /\nDisallow: /api/\nDisallow: /dashboard\n\nSitemap: " + h.baseURL + "/sitemap.xml\n")
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (h *LegalHandler) Sitemap(c *fiber.Ctx) error {
	today := time.Now().UTC().Format("2006-01-02")
	set := sitemapURLSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range publicPages {
		set.URLs = append(set.URLs, sitemapURL{Loc: h.baseURL + p, LastMod: today})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Type("xml").Send(append([]byte(xml.Header), out...))
}

func (h *LegalHandler) supportEmail() string {
	host := strings.TrimPrefix(strings.TrimPrefix(h.baseURL, "https://"), "http://")
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	return "support@" + host
}
