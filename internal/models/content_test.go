package models

import (
	"errors"
	"testing"
)

func TestContentDescriptorValidate(t *testing.T) {
	img := &ImagePayload{URL: "https://cdn.example/a.jpg", Width: 300, Height: 250}

	testCases := []struct {
		name    string
		d       *ContentDescriptor
		wantErr bool
	}{
		{
			name: "image banner",
			d:    &ContentDescriptor{ID: "1", Kind: DeliveryImageBanner, Image: img},
		},
		{
			name: "image native with destination",
			d:    &ContentDescriptor{ID: "2", Kind: DeliveryImageNative, Image: img, DestinationURL: "https://dealer.example/offer"},
		},
		{
			name: "image from sources only",
			d:    &ContentDescriptor{ID: "3", Kind: DeliveryImageBanner, Image: &ImagePayload{Sources: []ImageSource{{URL: "https://cdn.example/a@2x.jpg", Width: 600}}}},
		},
		{
			name: "snippet",
			d:    &ContentDescriptor{ID: "4", Kind: DeliveryEmbeddedSnippet, Snippet: "<div>promo</div>"},
		},
		{
			name:    "nil",
			d:       nil,
			wantErr: true,
		},
		{
			name:    "missing id",
			d:       &ContentDescriptor{Kind: DeliveryEmbeddedSnippet, Snippet: "<div></div>"},
			wantErr: true,
		},
		{
			name:    "snippet kind carrying image",
			d:       &ContentDescriptor{ID: "5", Kind: DeliveryEmbeddedSnippet, Snippet: "<div></div>", Image: img},
			wantErr: true,
		},
		{
			name:    "snippet kind without snippet",
			d:       &ContentDescriptor{ID: "6", Kind: DeliveryEmbeddedSnippet, Image: img},
			wantErr: true,
		},
		{
			name:    "image kind carrying snippet",
			d:       &ContentDescriptor{ID: "7", Kind: DeliveryImageBanner, Image: img, Snippet: "<script></script>"},
			wantErr: true,
		},
		{
			name:    "image kind without image",
			d:       &ContentDescriptor{ID: "8", Kind: DeliveryImageNative},
			wantErr: true,
		},
		{
			name:    "image with empty url and no sources",
			d:       &ContentDescriptor{ID: "9", Kind: DeliveryImageNative, Image: &ImagePayload{Width: 1}},
			wantErr: true,
		},
		{
			name:    "image with only empty source urls",
			d:       &ContentDescriptor{ID: "12", Kind: DeliveryImageBanner, Image: &ImagePayload{Sources: []ImageSource{{URL: "", Width: 300}}}},
			wantErr: true,
		},
		{
			name: "image from a later source",
			d:    &ContentDescriptor{ID: "13", Kind: DeliveryImageBanner, Image: &ImagePayload{Sources: []ImageSource{{URL: "", Width: 300}, {URL: "https://cdn.example/b.jpg", Width: 600}}}},
		},
		{
			name:    "unknown kind",
			d:       &ContentDescriptor{ID: "10", Kind: "VIDEO", Snippet: "x"},
			wantErr: true,
		},
		{
			name:    "javascript destination",
			d:       &ContentDescriptor{ID: "11", Kind: DeliveryImageBanner, Image: img, DestinationURL: "javascript:alert(1)"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedDescriptor) {
					t.Fatalf("expected ErrMalformedDescriptor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestImagePayloadPrimaryURL(t *testing.T) {
	var nilImg *ImagePayload
	if got := nilImg.PrimaryURL(); got != "" {
		t.Fatalf("nil payload: got %q", got)
	}
	img := &ImagePayload{Sources: []ImageSource{{URL: ""}, {URL: "https://cdn.example/b.jpg"}}}
	if got := img.PrimaryURL(); got != "https://cdn.example/b.jpg" {
		t.Fatalf("got %q, want first non-empty source", got)
	}
	img.URL = "https://cdn.example/a.jpg"
	if got := img.PrimaryURL(); got != "https://cdn.example/a.jpg" {
		t.Fatalf("got %q, want url", got)
	}
}

func TestContentDescriptorClickable(t *testing.T) {
	var nilDesc *ContentDescriptor
	if nilDesc.Clickable() {
		t.Fatal("nil descriptor must not be clickable")
	}
	if (&ContentDescriptor{ID: "1"}).Clickable() {
		t.Fatal("descriptor without destination must not be clickable")
	}
	if !(&ContentDescriptor{ID: "1", DestinationURL: "https://x.example"}).Clickable() {
		t.Fatal("descriptor with destination should be clickable")
	}
}
