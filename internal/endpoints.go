package internal

import (
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/models"
)

// EventEndpoints is a collection of endpoints for working with the event service
type EventEndpoints struct {
	List                endpoint.Endpoint
	Get                 endpoint.Endpoint
	Create              endpoint.Endpoint
	Delete              endpoint.Endpoint
	UpdateItemConfig    endpoint.Endpoint
	RegeneratePin       endpoint.Endpoint
	Transition          endpoint.Endpoint
	AddAdministrator    endpoint.Endpoint
	RemoveAdministrator endpoint.Endpoint
}

// ItemEndpoints is a collection of endpoints for working with the item service
type ItemEndpoints struct {
	Register      endpoint.Endpoint
	List          endpoint.Endpoint
	AssignItemIDs endpoint.Endpoint
}

// RatingEndpoints is a collection of endpoints for working with the rating service
type RatingEndpoints struct {
	Submit                 endpoint.Endpoint
	Delete                 endpoint.Endpoint
	List                   endpoint.Endpoint
	DeleteAll              endpoint.Endpoint
	DeleteUser             endpoint.Endpoint
	DeleteAllNonAdminUsers endpoint.Endpoint
	SaveBookmarks          endpoint.Endpoint
	UpdateProfile          endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	Join   endpoint.Endpoint
	Leave  endpoint.Endpoint
	WhoAmI endpoint.Endpoint
}

// SimilarityEndpoints is a collection of endpoints for working with the similarity service
type SimilarityEndpoints struct {
	FindSimilarUsers endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

type pagingResponse struct {
	Rows uint        `json:"rows"`
	List interface{} `json:"list"`
}

// eventRequest targets one event without any further payload
type eventRequest struct {
	EventID string
}

func (r eventRequest) eventID() string { return r.EventID }

// A request for replacing an event's item configuration
type itemConfigRequest struct {
	eventRequest
	Config models.ItemConfig
}

// A request for moving an event along its lifecycle
type transitionRequest struct {
	eventRequest
	To       models.EventState `json:"to"`
	Expected models.EventState `json:"expected"`
}

// A request referencing one guest of an event by email address
type userRequest struct {
	eventRequest
	Email string `json:"email"`
}

// A request made when joining an event
type joinRequest struct {
	eventRequest
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Pin         string `json:"pin"`
}

// A request for registering a new item
type registerItemRequest struct {
	eventRequest
	Item models.Item
}

// A request for assigning official item numbers to registered items
type assignItemsRequest struct {
	eventRequest
	// Maps registration IDs to the item numbers they shall receive
	Assignments map[string]int `json:"assignments"`
}

// A request for submitting a rating
type submitRatingRequest struct {
	eventRequest
	ItemID int    `json:"itemId"`
	Score  int    `json:"score"`
	Note   string `json:"note"`
}

// A request referencing one rating of the calling user
type ratingRequest struct {
	eventRequest
	ItemID int
}

// A request for replacing the calling user's bookmarks
type bookmarksRequest struct {
	eventRequest
	ItemIDs []int `json:"itemIds"`
}

// A request for updating the calling user's profile
type profileRequest struct {
	eventRequest
	DisplayName string `json:"displayName"`
}

// -- Events -----------------------------------------------------------------------------------------------------------

// MakeEventEndpoints builds the endpoints needed to communicate with the Event Service
func MakeEventEndpoints(s EventService) EventEndpoints {
	return EventEndpoints{
		List:                makeListEventsEndpoint(s),
		Get:                 makeGetEventEndpoint(s),
		Create:              makeCreateEventEndpoint(s),
		Delete:              EnsureEventSession(makeDeleteEventEndpoint(s)),
		UpdateItemConfig:    EnsureEventSession(makeUpdateItemConfigEndpoint(s)),
		RegeneratePin:       EnsureEventSession(makeRegeneratePinEndpoint(s)),
		Transition:          EnsureEventSession(makeTransitionEndpoint(s)),
		AddAdministrator:    EnsureEventSession(makeAddAdministratorEndpoint(s)),
		RemoveAdministrator: EnsureEventSession(makeRemoveAdministratorEndpoint(s)),
	}
}

func makeListEventsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(Search)
		if !ok {
			return nil, fmt.Errorf("illegal search parameter")
		}
		list, numRows, err := s.List(ctx, &se)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, pagingResponse{numRows, list}}, nil
	}
}

func makeGetEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		ev, err := s.Get(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeCreateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		event, ok := request.(models.Event)
		if !ok {
			return nil, fmt.Errorf("illegal event parameter")
		}
		ev, err := s.Create(ctx, &event)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeDeleteEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		if err := s.Delete(ctx, req.EventID); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeUpdateItemConfigEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(itemConfigRequest)
		if !ok {
			return nil, fmt.Errorf("illegal item configuration parameter")
		}
		if err := s.UpdateItemConfig(ctx, req.EventID, req.Config); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeRegeneratePinEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		pin, err := s.RegeneratePin(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, map[string]string{"pin": pin}}, nil
	}
}

func makeTransitionEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(transitionRequest)
		if !ok {
			return nil, fmt.Errorf("illegal transition request")
		}
		if err := s.Transition(ctx, req.EventID, req.To, req.Expected); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeAddAdministratorEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(userRequest)
		if !ok {
			return nil, fmt.Errorf("illegal administrator request")
		}
		if err := s.AddAdministrator(ctx, req.EventID, req.Email); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeRemoveAdministratorEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(userRequest)
		if !ok {
			return nil, fmt.Errorf("illegal administrator request")
		}
		if err := s.RemoveAdministrator(ctx, req.EventID, req.Email); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Items ------------------------------------------------------------------------------------------------------------

// MakeItemEndpoints builds the endpoints needed to communicate with the Item Service
func MakeItemEndpoints(s ItemService) ItemEndpoints {
	return ItemEndpoints{
		Register:      EnsureEventSession(makeRegisterItemEndpoint(s)),
		List:          EnsureEventSession(makeListItemsEndpoint(s)),
		AssignItemIDs: EnsureEventSession(makeAssignItemIDsEndpoint(s)),
	}
}

func makeRegisterItemEndpoint(s ItemService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(registerItemRequest)
		if !ok {
			return nil, fmt.Errorf("illegal item parameter")
		}
		item, err := s.Register(ctx, req.EventID, req.Item)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, item}, nil
	}
}

func makeListItemsEndpoint(s ItemService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		items, err := s.List(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, items}, nil
	}
}

func makeAssignItemIDsEndpoint(s ItemService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(assignItemsRequest)
		if !ok {
			return nil, fmt.Errorf("illegal assignment request")
		}
		if err := s.AssignItemIDs(ctx, req.EventID, req.Assignments); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Ratings ----------------------------------------------------------------------------------------------------------

// MakeRatingEndpoints builds the endpoints needed to communicate with the Rating Service
func MakeRatingEndpoints(s RatingService) RatingEndpoints {
	return RatingEndpoints{
		Submit:                 EnsureEventSession(makeSubmitRatingEndpoint(s)),
		Delete:                 EnsureEventSession(makeDeleteRatingEndpoint(s)),
		List:                   EnsureEventSession(makeListRatingsEndpoint(s)),
		DeleteAll:              EnsureEventSession(makeDeleteAllRatingsEndpoint(s)),
		DeleteUser:             EnsureEventSession(makeDeleteUserEndpoint(s)),
		DeleteAllNonAdminUsers: EnsureEventSession(makeDeleteAllNonAdminUsersEndpoint(s)),
		SaveBookmarks:          EnsureEventSession(makeSaveBookmarksEndpoint(s)),
		UpdateProfile:          EnsureEventSession(makeUpdateProfileEndpoint(s)),
	}
}

func makeSubmitRatingEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(submitRatingRequest)
		if !ok {
			return nil, fmt.Errorf("illegal rating parameter")
		}
		if err := s.Submit(ctx, req.EventID, req.ItemID, req.Score, req.Note); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteRatingEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(ratingRequest)
		if !ok {
			return nil, fmt.Errorf("illegal rating parameter")
		}
		if err := s.Delete(ctx, req.EventID, req.ItemID); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeListRatingsEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		ratings, err := s.List(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ratings}, nil
	}
}

func makeDeleteAllRatingsEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		if err := s.DeleteAll(ctx, req.EventID); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteUserEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(userRequest)
		if !ok {
			return nil, fmt.Errorf("illegal user parameter")
		}
		if err := s.DeleteUser(ctx, req.EventID, req.Email); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteAllNonAdminUsersEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		if err := s.DeleteAllNonAdminUsers(ctx, req.EventID); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeSaveBookmarksEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(bookmarksRequest)
		if !ok {
			return nil, fmt.Errorf("illegal bookmark parameter")
		}
		if err := s.SaveBookmarks(ctx, req.EventID, req.ItemIDs); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeUpdateProfileEndpoint(s RatingService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(profileRequest)
		if !ok {
			return nil, fmt.Errorf("illegal profile parameter")
		}
		if err := s.UpdateProfile(ctx, req.EventID, req.DisplayName); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Sessions ---------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints builds the endpoints needed to communicate with the Session Service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		Join:   makeJoinEndpoint(s),
		Leave:  makeLeaveEndpoint(s),
		WhoAmI: makeWhoAmIEndpoint(s),
	}
}

func makeJoinEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(joinRequest)
		if !ok {
			return nil, fmt.Errorf("illegal join request")
		}
		si, err := s.Join(ctx, req.EventID, req.Email, req.DisplayName, req.Pin)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

func makeLeaveEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		if err := s.Leave(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeWhoAmIEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		si, err := s.WhoAmI(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

// -- Similarity -------------------------------------------------------------------------------------------------------

// MakeSimilarityEndpoints builds the endpoints needed to communicate with the Similarity Service
func MakeSimilarityEndpoints(s SimilarityService) SimilarityEndpoints {
	return SimilarityEndpoints{
		FindSimilarUsers: EnsureEventSession(makeFindSimilarUsersEndpoint(s)),
	}
}

func makeFindSimilarUsersEndpoint(s SimilarityService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventRequest)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		users, err := s.FindSimilarUsers(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, users}, nil
	}
}
