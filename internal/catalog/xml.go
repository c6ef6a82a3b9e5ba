package catalog

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Item is a board game as described by BGG.
type Item struct {
	ID             int64
	Name           string
	MinPlayers     int
	MaxPlayers     int
	PlayingTime    int
	MinPlayingTime int
	MaxPlayingTime int
	Weight         float64 // BGG average weight 1-5, 0 when unrated
	Thumbnail      string
	// BaseGameID is the game an expansion expands, 0 for base games.
	// MaxPlayers of an expansion is 0 when BGG does not say.
	BaseGameID int64
}

// SearchResult is one hit of a BGG name search.
type SearchResult struct {
	ID   int64
	Name string
	Year string
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type bggError struct {
	Message string `xml:"message"`
}

type collectionDoc struct {
	XMLName xml.Name
	Items   []collectionItem `xml:"item"`
	Errors  []bggError       `xml:"error"`
}

type collectionItem struct {
	ObjectID  string            `xml:"objectid,attr"`
	Subtype   string            `xml:"subtype,attr"`
	Name      string            `xml:"name"`
	Thumbnail string            `xml:"thumbnail"`
	Stats     *collectionStats  `xml:"stats"`
	Status    *collectionStatus `xml:"status"`
}

type collectionStats struct {
	MinPlayers  string `xml:"minplayers,attr"`
	MaxPlayers  string `xml:"maxplayers,attr"`
	MinPlayTime string `xml:"minplaytime,attr"`
	MaxPlayTime string `xml:"maxplaytime,attr"`
	PlayingTime string `xml:"playingtime,attr"`
	Rating      struct {
		AverageWeight valueAttr `xml:"averageweight"`
	} `xml:"rating"`
}

type collectionStatus struct {
	Own string `xml:"own,attr"`
}

type thingDoc struct {
	Items []thingItem `xml:"item"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type thingLink struct {
	Type    string `xml:"type,attr"`
	ID      string `xml:"id,attr"`
	Inbound string `xml:"inbound,attr"`
}

type thingItem struct {
	ID          string      `xml:"id,attr"`
	Type        string      `xml:"type,attr"`
	Thumbnail   string      `xml:"thumbnail"`
	Names       []thingName `xml:"name"`
	Links       []thingLink `xml:"link"`
	MinPlayers  *valueAttr  `xml:"minplayers"`
	MaxPlayers  *valueAttr  `xml:"maxplayers"`
	PlayingTime *valueAttr  `xml:"playingtime"`
	MinPlayTime *valueAttr  `xml:"minplaytime"`
	MaxPlayTime *valueAttr  `xml:"maxplaytime"`
	Statistics  struct {
		Ratings struct {
			AverageWeight valueAttr `xml:"averageweight"`
		} `xml:"ratings"`
	} `xml:"statistics"`
}

type searchDoc struct {
	Items []searchItem `xml:"item"`
}

type searchItem struct {
	ID            string    `xml:"id,attr"`
	Name          thingName `xml:"name"`
	YearPublished valueAttr `xml:"yearpublished"`
}

// decodeCollection reads a collection document, turning BGG's error
// document into an error.
func decodeCollection(data []byte) ([]collectionItem, error) {
	var doc collectionDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	if doc.XMLName.Local == "errors" {
		for _, e := range doc.Errors {
			if strings.Contains(strings.ToLower(e.Message), "invalid username") {
				return nil, ErrUserNotFound
			}
		}
		if len(doc.Errors) > 0 {
			return nil, fmt.Errorf("bgg error: %s", strings.TrimSpace(doc.Errors[0].Message))
		}
		return nil, fmt.Errorf("bgg error document without message")
	}
	return doc.Items, nil
}

// owned returns the item's id and name, ok is false for items the user does
// not own or that carry no usable id.
func (it collectionItem) owned() (id int64, name string, ok bool) {
	if it.Status != nil && it.Status.Own != "1" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(it.ObjectID, 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	name = strings.TrimSpace(it.Name)
	if name == "" {
		name = "Unknown"
	}
	return id, name, true
}

// parseCollection maps a collection document to owned items.
// Items without stats or not owned are skipped.
func parseCollection(data []byte) ([]Item, error) {
	raw, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		if it.Stats == nil {
			continue
		}
		id, name, ok := it.owned()
		if !ok {
			continue
		}

		item := Item{
			ID:             id,
			Name:           name,
			MinPlayers:     atoiDefault(it.Stats.MinPlayers, 1),
			MaxPlayers:     atoiDefault(it.Stats.MaxPlayers, 1),
			PlayingTime:    atoiDefault(it.Stats.PlayingTime, 0),
			MinPlayingTime: atoiDefault(it.Stats.MinPlayTime, 0),
			MaxPlayingTime: atoiDefault(it.Stats.MaxPlayTime, 0),
			Weight:         parseWeight(it.Stats.Rating.AverageWeight.Value),
			Thumbnail:      strings.TrimSpace(it.Thumbnail),
		}
		normalizeRange(&item)
		items = append(items, item)
	}
	return items, nil
}

// parseExpansionCollection lists the owned expansions of a collection
// document. Only ids and names are known at this point.
func parseExpansionCollection(data []byte) ([]Item, error) {
	raw, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		id, name, ok := it.owned()
		if !ok {
			continue
		}
		items = append(items, Item{ID: id, Name: name})
	}
	return items, nil
}

func parseThings(data []byte) ([]Item, error) {
	var doc thingDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode thing: %w", err)
	}

	items := make([]Item, 0, len(doc.Items))
	for _, it := range doc.Items {
		id, err := strconv.ParseInt(it.ID, 10, 64)
		if err != nil || id == 0 {
			continue
		}

		name := "Unknown"
		for _, n := range it.Names {
			if n.Type == "primary" {
				name = n.Value
				break
			}
		}

		item := Item{
			ID:             id,
			Name:           name,
			MinPlayers:     valueDefault(it.MinPlayers, 1),
			MaxPlayers:     valueDefault(it.MaxPlayers, 6),
			PlayingTime:    valueDefault(it.PlayingTime, 0),
			MinPlayingTime: valueDefault(it.MinPlayTime, 0),
			MaxPlayingTime: valueDefault(it.MaxPlayTime, 0),
			Weight:         parseWeight(it.Statistics.Ratings.AverageWeight.Value),
			Thumbnail:      strings.TrimSpace(it.Thumbnail),
		}
		if it.Type == "boardgameexpansion" {
			item.BaseGameID = baseGameID(it.Links)
			item.MaxPlayers = valueDefault(it.MaxPlayers, 0)
		} else {
			normalizeRange(&item)
		}
		items = append(items, item)
	}
	return items, nil
}

// baseGameID finds the inbound expansion link, which points from an
// expansion to the game it expands.
func baseGameID(links []thingLink) int64 {
	for _, l := range links {
		if l.Type != "boardgameexpansion" || l.Inbound != "true" {
			continue
		}
		if id, err := strconv.ParseInt(l.ID, 10, 64); err == nil {
			return id
		}
	}
	return 0
}

func parseSearch(data []byte, limit int) ([]SearchResult, error) {
	var doc searchDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	results := make([]SearchResult, 0, len(doc.Items))
	for _, it := range doc.Items {
		if limit > 0 && len(results) >= limit {
			break
		}
		id, err := strconv.ParseInt(it.ID, 10, 64)
		if err != nil {
			continue
		}
		name := it.Name.Value
		if name == "" {
			name = "Unknown"
		}
		results = append(results, SearchResult{
			ID:   id,
			Name: name,
			Year: it.YearPublished.Value,
		})
	}
	return results, nil
}

// normalizeRange keeps min <= max; BGG occasionally reports 0 or inverted ranges.
func normalizeRange(it *Item) {
	if it.MinPlayers < 1 {
		it.MinPlayers = 1
	}
	if it.MaxPlayers < it.MinPlayers {
		it.MaxPlayers = it.MinPlayers
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func valueDefault(v *valueAttr, def int) int {
	if v == nil {
		return def
	}
	return atoiDefault(v.Value, def)
}

func parseWeight(s string) float64 {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || w < 0 {
		return 0
	}
	return w
}
