package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/kardianos/osext"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/ctxhelper"
	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
)

const (
	apiBasePath = "/api"
)

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	basicResponse
	// The error code
	Error   string      `json:"error"`
	Message string      `json:"errorMessage"`
	Details interface{} `json:"errorDetails,omitempty"`
}

// MakeHTTPHandler creates the main HTTP handler for the Gustavo service
func MakeHTTPHandler(
	es EventService,
	is ItemService,
	rs RatingService,
	sim SimilarityService,
	sServ SessionService,
	logger *logrus.Entry,
) http.Handler {
	r := mux.NewRouter()

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(makeContextInjector(logger)),
		httptransport.ServerBefore(makeSessionDecoder(sServ)),
	}

	// -- Event Service --------------------------------
	{
		evEp := MakeEventEndpoints(es)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.List,
			decodeSearchRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Get,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.Create,
			decodeEvent,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Delete,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// UpdateItemConfig
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id}/config").Handler(httptransport.NewServer(
			evEp.UpdateItemConfig,
			decodeItemConfigRequest,
			encodeJSONResponse,
			options...,
		))

		// RegeneratePin
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/pin").Handler(httptransport.NewServer(
			evEp.RegeneratePin,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// Transition
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/state").Handler(httptransport.NewServer(
			evEp.Transition,
			decodeTransitionRequest,
			encodeJSONResponse,
			options...,
		))

		// AddAdministrator
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/admins").Handler(httptransport.NewServer(
			evEp.AddAdministrator,
			decodeUserRequestFromBody,
			encodeJSONResponse,
			options...,
		))

		// RemoveAdministrator
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}/admins/{email}").Handler(httptransport.NewServer(
			evEp.RemoveAdministrator,
			decodeUserRequestFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Item Service ---------------------------------
	{
		itEp := MakeItemEndpoints(is)

		// Register
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/items").Handler(httptransport.NewServer(
			itEp.Register,
			decodeRegisterItemRequest,
			encodeJSONResponse,
			options...,
		))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}/items").Handler(httptransport.NewServer(
			itEp.List,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// AssignItemIDs
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/items/assign").Handler(httptransport.NewServer(
			itEp.AssignItemIDs,
			decodeAssignItemsRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Rating Service -------------------------------
	{
		rtEp := MakeRatingEndpoints(rs)

		// Submit
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id}/ratings").Handler(httptransport.NewServer(
			rtEp.Submit,
			decodeSubmitRatingRequest,
			encodeJSONResponse,
			options...,
		))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}/ratings").Handler(httptransport.NewServer(
			rtEp.List,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete (own rating)
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}/ratings/{itemId:[0-9]+}").Handler(httptransport.NewServer(
			rtEp.Delete,
			decodeRatingRequest,
			encodeJSONResponse,
			options...,
		))

		// DeleteAll
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}/ratings").Handler(httptransport.NewServer(
			rtEp.DeleteAll,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// DeleteUser
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}/users/{email}").Handler(httptransport.NewServer(
			rtEp.DeleteUser,
			decodeUserRequestFromPath,
			encodeJSONResponse,
			options...,
		))

		// DeleteAllNonAdminUsers
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}/users").Handler(httptransport.NewServer(
			rtEp.DeleteAllNonAdminUsers,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// UpdateProfile
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id}/me").Handler(httptransport.NewServer(
			rtEp.UpdateProfile,
			decodeProfileRequest,
			encodeJSONResponse,
			options...,
		))

		// SaveBookmarks
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id}/me/bookmarks").Handler(httptransport.NewServer(
			rtEp.SaveBookmarks,
			decodeBookmarksRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Similarity Service ---------------------------
	{
		simEp := MakeSimilarityEndpoints(sim)

		// FindSimilarUsers
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}/similar").Handler(httptransport.NewServer(
			simEp.FindSimilarUsers,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Session Service ------------------------------
	{
		sEp := MakeSessionEndpoints(sServ)

		// Join
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id}/join").Handler(httptransport.NewServer(
			sEp.Join,
			decodeJoinRequest,
			encodeJSONResponse,
			options...,
		))

		// Leave
		r.Methods(http.MethodPost).Path(apiBasePath + "/leave").Handler(httptransport.NewServer(
			sEp.Leave,
			decodeToken,
			encodeJSONResponse,
			options...,
		))

		// WhoAmI
		r.Methods(http.MethodGet).Path(apiBasePath + "/whoami").Handler(httptransport.NewServer(
			sEp.WhoAmI,
			decodeToken,
			encodeJSONResponse,
			options...,
		))
	}

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		data := map[string]bool{"ok": true}
		json.NewEncoder(w).Encode(data)
	})

	// Plain file service for the UI serving everything from the "ui" folder right beside the application executable
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}
	uiDir := filepath.Join(execDir, "ui")
	r.Methods(http.MethodGet).PathPrefix("/").Handler(http.FileServer(http.Dir(uiDir)))

	return r
}

// decodeJSONBody reads the request's JSON body into the given target structure
func decodeJSONBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return nil
}

// eventRequestFromPath builds the base request from the "id" path variable provided by GoRilla
func eventRequestFromPath(r *http.Request) (eventRequest, error) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok || id == "" {
		return eventRequest{}, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing event ID")
	}
	return eventRequest{EventID: id}, nil
}

// decodeEventRequest decodes a request that only carries the event ID in its path
func decodeEventRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return eventRequestFromPath(r)
}

// decodeEvent tries to load an event object from the provided HTTP request's body
func decodeEvent(_ context.Context, r *http.Request) (interface{}, error) {
	var ev models.Event
	if err := decodeJSONBody(r, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// decodeItemConfigRequest reads a new item configuration from the JSON body
func decodeItemConfigRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var cfg models.ItemConfig
	if err := decodeJSONBody(r, &cfg); err != nil {
		return nil, err
	}
	return itemConfigRequest{eventRequest: base, Config: cfg}, nil
}

// decodeTransitionRequest reads a lifecycle transition from the JSON body
func decodeTransitionRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req transitionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	// The path decides which event is meant - never the body
	req.eventRequest = base
	return req, nil
}

// decodeUserRequestFromBody reads an email address from the JSON body
func decodeUserRequestFromBody(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req userRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.eventRequest = base
	if req.Email == "" {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing email address")
	}
	return req, nil
}

// decodeUserRequestFromPath reads an email address from the "email" path variable
func decodeUserRequestFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	vars := mux.Vars(r)
	email, ok := vars["email"]
	if !ok || email == "" {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing email address")
	}
	return userRequest{eventRequest: base, Email: email}, nil
}

// decodeJoinRequest decodes a join request from the JSON body
func decodeJoinRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req joinRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.eventRequest = base
	return req, nil
}

// decodeRegisterItemRequest reads the item to register from the JSON body
func decodeRegisterItemRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var item models.Item
	if err := decodeJSONBody(r, &item); err != nil {
		return nil, err
	}
	return registerItemRequest{eventRequest: base, Item: item}, nil
}

// decodeAssignItemsRequest reads the item number assignments from the JSON body
func decodeAssignItemsRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req assignItemsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.eventRequest = base
	return req, nil
}

// decodeSubmitRatingRequest reads a rating from the JSON body
func decodeSubmitRatingRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req submitRatingRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.eventRequest = base
	return req, nil
}

// decodeRatingRequest reads the item number of a single rating from the path
func decodeRatingRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	vars := mux.Vars(r)
	itemID, err := strconv.Atoi(vars["itemId"])
	if err != nil {
		return nil, MakeError(http.StatusBadRequest, ErrCodeIllegalValue, "Item number is no valid integer")
	}
	return ratingRequest{eventRequest: base, ItemID: itemID}, nil
}

// decodeBookmarksRequest reads the bookmarked item numbers from the JSON body
func decodeBookmarksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req bookmarksRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.eventRequest = base
	return req, nil
}

// decodeProfileRequest reads the profile changes from the JSON body
func decodeProfileRequest(_ context.Context, r *http.Request) (interface{}, error) {
	base, err := eventRequestFromPath(r)
	if err != nil {
		return nil, err
	}
	var req profileRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.eventRequest = base
	return req, nil
}

// decodeToken gets the token from the call's context
func decodeToken(ctx context.Context, r *http.Request) (request interface{}, err error) {
	session := ctxhelper.Session(ctx)
	if session == nil {
		return nil, ErrNotJoined
	}
	return session.ID, nil
}

// decodePaginationRequest reads the pagination information from the request's query variables
func decodePaginationRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	val := r.URL.Query()
	pag := Pagination{
		Limit: DefaultPageSize,
	}
	if i, err := strconv.ParseUint(val.Get("offset"), 10, 64); err == nil {
		pag.Offset = uint(i)
	}
	if i, err := strconv.ParseUint(val.Get("limit"), 10, 64); err == nil {
		pag.Limit = uint(i)
	}
	return pag, nil
}

// decodeSearchRequest decodes the parameters of a search by checking the GET variables "search", "limit" and "offset"
func decodeSearchRequest(ctx context.Context, r *http.Request) (request interface{}, err error) {
	val := r.URL.Query()
	pag, _ := decodePaginationRequest(ctx, r)
	search := Search{
		Search:     val.Get("search"),
		Pagination: pag.(Pagination),
	}
	return search, nil
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

// Builds an error response based on the incoming error
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if st, ok := err.(httpStatuser); ok {
		w.WriteHeader(st.Status())
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ret := errorResponse{
		basicResponse: basicResponse{false, nil},
		Message:       err.Error(),
		Error:         ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Error = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	json.NewEncoder(w).Encode(&ret)
}

// makeSessionDecoder returns a function that is used in every HTTP call to decode the session used, if a session
// token is sent by the client
func makeSessionDecoder(s SessionService) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		token := strings.TrimSpace(r.Header.Get("token"))
		logger := ctxhelper.Logger(ctx)
		if token != "" {
			// Try to load the session's data
			sess, err := s.GetContents(ctx, token, true)
			if err != nil {
				logger.WithError(err).WithField(log.FldSession, token).Error("Failed to retrieve session information")
				return ctx
			}
			if sess == nil {
				// Nobody joined
				return ctx
			}
			ctx = context.WithValue(ctx, ctxhelper.KeySession, *sess)
			ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger.WithFields(logrus.Fields{
				log.FldSession: sess.ID,
				log.FldEvent:   sess.EventID,
				log.FldUser:    sess.Email,
			}))
		}
		return ctx
	}
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return context.WithValue(ctx, ctxhelper.KeyLogger, logger)
	}
}
