package platform

import (
	"time"

	"github.com/nao1215/phoneprobe/internal/candidate"
	"github.com/nao1215/phoneprobe/internal/classify"
	"github.com/nao1215/phoneprobe/internal/extract"
	"github.com/nao1215/phoneprobe/internal/model"
)

// Built-in platform names.
const (
	Instagram = "instagram"
	TikTok    = "tiktok"
	X         = "x"
	WhatsApp  = "whatsapp"
)

// Builtin returns fresh copies of the built-in descriptors in display
// order.
func Builtin() []Descriptor {
	return []Descriptor{
		instagram(),
		tiktok(),
		x(),
		whatsapp(),
	}
}

func instagram() Descriptor {
	return Descriptor{
		Name:        Instagram,
		Description: "Instagram profiles whose handle ends in the number's trailing digits",
		URLTemplate: "https://www.instagram.com/{candidate}/",
		MinDigits:   9,
		Rules: []candidate.Rule{
			{Length: 8},
			{Length: 9},
			{Length: 8, Prefix: "eu"},
			{Length: 9, Prefix: "eu"},
			{Length: 8, Prefix: "o"},
			{Length: 9, Prefix: "o"},
		},
		Fetcher:  FetcherHTTP,
		MinDelay: 3 * time.Second,
		Jitter:   time.Second,
		Cooldown: time.Minute,
		Timeout:  10 * time.Second,
		Markers: classify.Rules{
			Found: []classify.Marker{classify.Text("profile-pic")},
			NotFound: []classify.Marker{
				classify.Title("Page Not Found"),
				classify.Text("Sorry, this page isn't available."),
			},
			Blocked: []classify.Marker{
				classify.Title("Login • Instagram"),
				classify.Selector("#arkose_iframe"),
			},
		},
		Schema: extract.Schema{
			Block: &extract.Block{Selector: `script[type='application/ld+json']`},
			Fields: map[string]extract.FieldRule{
				model.FieldUsername:    {Path: extract.Path{"alternateName"}, TrimPrefix: "@"},
				model.FieldDisplayName: {Path: extract.Path{"name"}},
				model.FieldBio:         {Path: extract.Path{"description"}},
				model.FieldVerified:    {Path: extract.Path{"isVerified"}},
				model.FieldAvatarURL:   {Path: extract.Path{"image"}},
				model.FieldFollowers: {Path: extract.Path{
					"mainEntityofPage",
					"interactionStatistic[interactionType=http://schema.org/FollowAction]",
					"userInteractionCount",
				}},
				model.FieldLikes: {Path: extract.Path{
					"mainEntityofPage",
					"interactionStatistic[interactionType=http://schema.org/LikeAction]",
					"userInteractionCount",
				}},
			},
		},
	}
}

func tiktok() Descriptor {
	return Descriptor{
		Name:        TikTok,
		Description: "TikTok accounts named user/usuario plus trailing digits",
		URLTemplate: "https://www.tiktok.com/@{candidate}",
		MinDigits:   8,
		Rules: []candidate.Rule{
			{Length: 8, Prefix: "user"},
			{Length: 6, Prefix: "user"},
			{Length: 4, Prefix: "user"},
			{Length: 8, Prefix: "usuario"},
			{Length: 6, Prefix: "usuario"},
			{Length: 4, Prefix: "usuario"},
			{Length: 8},
		},
		Fetcher:     FetcherBrowser,
		MinDelay:    5*time.Second + 500*time.Millisecond,
		Jitter:      1500 * time.Millisecond,
		Cooldown:    time.Minute,
		Timeout:     30 * time.Second,
		WaitFor:     []string{"script#__UNIVERSAL_DATA_FOR_REHYDRATION__"},
		WaitTimeout: 15 * time.Second,
		Markers: classify.Rules{
			Found: []classify.Marker{classify.Selector("script#__UNIVERSAL_DATA_FOR_REHYDRATION__")},
			NotFound: []classify.Marker{
				classify.Title("Couldn't find this account"),
				classify.Title("Page not found"),
			},
			Blocked: []classify.Marker{
				classify.Selector("#captcha-verify-container"),
				classify.Selector("div.captcha_verify_container"),
			},
		},
		Schema: extract.Schema{
			Block: &extract.Block{
				Selector: `script#__UNIVERSAL_DATA_FOR_REHYDRATION__`,
				Root:     extract.Path{"__DEFAULT_SCOPE__", "webapp.user-detail", "userInfo"},
				Required: []string{"user", "stats"},
			},
			Fields: map[string]extract.FieldRule{
				model.FieldUsername:    {Path: extract.Path{"user", "uniqueId"}},
				model.FieldDisplayName: {Path: extract.Path{"user", "nickname"}},
				model.FieldAvatarURL:   {Path: extract.Path{"user", "avatarLarger"}},
				model.FieldBio:         {Path: extract.Path{"user", "signature"}},
				model.FieldVerified:    {Path: extract.Path{"user", "verified"}},
				model.FieldPrivate:     {Path: extract.Path{"user", "privateAccount"}},
				model.FieldFollowing:   {Path: extract.Path{"stats", "followingCount"}},
				model.FieldFollowers:   {Path: extract.Path{"stats", "followerCount"}},
				model.FieldLikes:       {Path: extract.Path{"stats", "heartCount"}},
				model.FieldPosts:       {Path: extract.Path{"stats", "videoCount"}},
			},
		},
	}
}

func x() Descriptor {
	return Descriptor{
		Name:        X,
		Description: "X (Twitter) handles made of the number's trailing digits",
		URLTemplate: "https://x.com/{candidate}",
		MinDigits:   9,
		Rules: []candidate.Rule{
			{Length: 8},
			{Length: 9},
		},
		Fetcher:     FetcherBrowser,
		MinDelay:    5 * time.Second,
		Jitter:      10 * time.Second,
		Cooldown:    2 * time.Minute,
		Timeout:     30 * time.Second,
		WaitFor:     []string{`[data-testid='UserName']`, `[data-testid='empty_state_header_text']`},
		WaitTimeout: 10 * time.Second,
		Markers: classify.Rules{
			Found: []classify.Marker{classify.Selector(`[data-testid='UserName']`)},
			NotFound: []classify.Marker{
				classify.Text("This account doesn’t exist"),
				classify.Text("Essa conta não existe"),
			},
			Blocked: []classify.Marker{classify.Selector("#arkose_iframe")},
		},
	}
}

func whatsapp() Descriptor {
	return Descriptor{
		Name:           WhatsApp,
		Description:    "WhatsApp account lookup of a full Brazilian number (needs a logged-in WhatsApp Web profile)",
		URLTemplate:    "https://web.whatsapp.com/send?phone={candidate}&text&app_absent=0",
		SingleTarget:   true,
		MinDigits:      13,
		RequiredPrefix: "55",
		Rules:          []candidate.Rule{{Length: 0}},
		Fetcher:        FetcherBrowser,
		MinDelay:       5 * time.Second,
		Timeout:        60 * time.Second,
		WaitFor:        []string{`header[data-testid='chat-header']`, `div[data-testid='confirm-popup']`},
		WaitTimeout:    25 * time.Second,
		Click:          `header[data-testid='chat-header']`,
		AfterClick:     `div[data-testid='contact-info-drawer']`,
		ReadyURL:       "https://web.whatsapp.com/",
		ReadySelector:  `div[data-testid='app']`,
		ReadyTimeout:   120 * time.Second,
		Markers: classify.Rules{
			Found:        []classify.Marker{classify.Selector(`header[data-testid='chat-header']`)},
			NotFound:     []classify.Marker{classify.Selector(`div[data-testid='confirm-popup']`)},
			RequireReady: true,
		},
		Schema: extract.Schema{
			RootSelector: `div[data-testid='contact-info-drawer']`,
			Fields: map[string]extract.FieldRule{
				model.FieldAvatarURL:   {Selector: `div[data-testid='contact-info-drawer'] img`, Attr: "src"},
				model.FieldDisplayName: {Selector: `h2[data-testid='contact-info-drawer-name'] span[dir='auto']`},
				model.FieldBio:         {Selector: `div[data-testid='contact-info-drawer-about'] span[dir='auto']`},
			},
		},
	}
}
