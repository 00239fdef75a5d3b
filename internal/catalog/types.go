// SPDX-License-Identifier: MIT

package catalog

// Stream is one playable radio channel resolved from the catalog.
type Stream struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Place is a location the catalog lists stations for.
type Place struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Country string `json:"country"`
}

// Page links a channel item to its listen page.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// placesResponse matches the catalog places API structure.
type placesResponse struct {
	Data struct {
		List []Place `json:"list"`
	} `json:"data"`
}

// channelsResponse matches the catalog channel listing structure. Items
// without a page are decorative entries, not playable channels.
type channelsResponse struct {
	Data struct {
		Content []struct {
			Items []struct {
				Page *Page `json:"page"`
			} `json:"items"`
		} `json:"content"`
	} `json:"data"`
}
